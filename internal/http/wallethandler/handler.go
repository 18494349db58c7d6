package wallethandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"sealedbid/internal/apperr"
	"sealedbid/internal/http/authz"
	"sealedbid/internal/http/respond"
	"sealedbid/internal/services/wallet"
)

type RechargeBody struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"100"`
} // @name RechargeRequest

type RechargeResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance" swaggertype:"string"`
} // @name RechargeResponse

type Handler struct {
	svc    wallet.IWalletService
	expose bool
}

func New(svc wallet.IWalletService, expose bool) *Handler {
	return &Handler{svc: svc, expose: expose}
}

func (h *Handler) Register(r gin.IRoutes) {
	admin := authz.Require(authz.AnyRole(authz.Admin))

	r.GET("/me/wallet", h.mine)
	r.POST("/wallets/:userId", admin, h.open)
	r.POST("/wallets/:userId/recharge", admin, h.recharge)
}

func userID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid user id %q", c.Param("userId"))
	}
	return id, nil
}

// @Summary		My wallet
// @Tags			Wallets
// @Success		200	{object}	models.Wallet
// @Failure		404	{object}	respond.ErrorResponse
// @Router			/me/wallet [get]
func (h *Handler) mine(c *gin.Context) {
	id, _ := authz.Get(c)
	w, err := h.svc.Get(c.Request.Context(), id.UserID)
	if err != nil {
		respond.Error(c, err, h.expose)
		return
	}
	c.JSON(http.StatusOK, w)
}

// @Summary		Open a wallet
// @Description	Creates the user's wallet with the configured initial grant.
// @Tags			Wallets
// @Param			userId	path		int	true	"User ID"
// @Success		201		{object}	models.Wallet
// @Failure		409		{object}	respond.ErrorResponse
// @Router			/wallets/{userId} [post]
func (h *Handler) open(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		respond.Error(c, err, h.expose)
		return
	}
	w, err := h.svc.Open(c.Request.Context(), uid)
	if err != nil {
		respond.Error(c, err, h.expose)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// @Summary		Recharge a wallet
// @Tags			Wallets
// @Param			userId	path		int				true	"User ID"
// @Param			body	body		RechargeBody	true	"Amount to credit"
// @Success		200		{object}	RechargeResponse
// @Failure		400		{object}	respond.ErrorResponse
// @Failure		404		{object}	respond.ErrorResponse
// @Router			/wallets/{userId}/recharge [post]
func (h *Handler) recharge(c *gin.Context) {
	uid, err := userID(c)
	if err != nil {
		respond.Error(c, err, h.expose)
		return
	}
	var body RechargeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, err)
		return
	}
	balance, err := h.svc.Recharge(c.Request.Context(), uid, body.Amount)
	if err != nil {
		respond.Error(c, err, h.expose)
		return
	}
	c.JSON(http.StatusOK, RechargeResponse{UserID: uid, Balance: balance})
}
