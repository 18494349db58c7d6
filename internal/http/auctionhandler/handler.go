package auctionhandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sealedbid/internal/apperr"
	"sealedbid/internal/http/authz"
	"sealedbid/internal/http/respond"
	"sealedbid/internal/models"
	"sealedbid/internal/services/auction"
)

type Handler struct {
	svc    auction.IAuctionService
	expose bool
}

// New builds the auction routes. expose lets internal error causes reach the
// client and is meant for non-production environments.
func New(svc auction.IAuctionService, expose bool) *Handler {
	return &Handler{svc: svc, expose: expose}
}

// Register expects authz.Identify to run before these routes.
func (h *Handler) Register(r gin.IRoutes) {
	creator := authz.Require(authz.AnyRole(authz.Creator))
	participant := authz.Require(authz.AnyRole(authz.Participant))
	closer := authz.Require(authz.AnyRole(authz.Admin, authz.Creator))

	r.POST("/auctions", creator, h.create)
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/bids", h.bids)
	r.POST("/auctions/:id/join", participant, h.join)
	r.POST("/auctions/:id/bids", participant, h.bid)
	r.POST("/auctions/:id/start", creator, h.start)
	r.POST("/auctions/:id/close", closer, h.close)
	r.PATCH("/auctions/:id/status", creator, h.updateStatus)
	r.GET("/me/participations", h.history)
}

func (h *Handler) fail(c *gin.Context, err error) { respond.Error(c, err, h.expose) }

func auctionID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid auction id %q", c.Param("id"))
	}
	return id, nil
}

// @Summary		Create an auction
// @Tags			Auctions
// @Param			X-User-Id	header		int					true	"Caller id"
// @Param			X-User-Role	header		string				true	"Caller role"	Enums(bid-creator)
// @Param			body		body		CreateAuctionBody	true	"Auction parameters"
// @Success		201			{object}	models.Auction
// @Failure		400			{object}	ErrorResponse
// @Failure		403			{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(c *gin.Context) {
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, err)
		return
	}
	id, _ := authz.Get(c)
	a, err := h.svc.CreateAuction(c.Request.Context(), id.UserID, body.params())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary		Get auction details
// @Description	Returns the auction with its participant count and current high bid.
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.AuctionDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	id, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	dto, err := h.svc.GetAuction(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		List auctions
// @Description	Retrieves a paginated list of auctions, optionally filtered by status.
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"			Enums(created,open,bidding,closed,cancelled)
// @Param			limit	query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		models.Auction
// @Failure		400		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respond.BadRequest(c, err)
		return
	}
	out, err := h.svc.ListAuctions(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	if out == nil {
		out = []models.Auction{}
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Bid history
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{array}		models.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/bids [get]
func (h *Handler) bids(c *gin.Context) {
	id, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.BidHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if out == nil {
		out = []models.Bid{}
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Join an auction
// @Description	Reserves entry fee plus max price from the caller's wallet.
// @Tags			Participation
// @Param			id	path		int	true	"Auction ID"
// @Success		201	{object}	models.Participation
// @Failure		402	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Failure		422	{object}	ErrorResponse
// @Router			/auctions/{id}/join [post]
func (h *Handler) join(c *gin.Context) {
	aid, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	id, _ := authz.Get(c)
	p, err := h.svc.Join(c.Request.Context(), id.UserID, aid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary		Place a bid
// @Description	Bid must exceed the last bid by the minimum increment and stay within max price.
// @Tags			Bids
// @Param			id		path		int				true	"Auction ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		201		{object}	auction.BidResult
// @Failure		400		{object}	ErrorResponse
// @Failure		403		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions/{id}/bids [post]
func (h *Handler) bid(c *gin.Context) {
	aid, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, err)
		return
	}
	id, _ := authz.Get(c)
	res, err := h.svc.PlaceBid(c.Request.Context(), aid, id.UserID, body.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary		Start an auction
// @Description	Moves an open auction to bidding, or cancels it when too few joined.
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.StartResult
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/start [post]
func (h *Handler) start(c *gin.Context) {
	aid, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.Start(c.Request.Context(), aid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary		Close an auction
// @Description	Settles the auction: the top bid wins, everybody else is refunded.
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.CloseResult
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/close [post]
func (h *Handler) close(c *gin.Context) {
	aid, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.Close(c.Request.Context(), aid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary		Open a created auction
// @Tags			Auctions
// @Param			id		path		int					true	"Auction ID"
// @Param			body	body		UpdateStatusBody	true	"Target status"
// @Success		200		{object}	models.Auction
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions/{id}/status [patch]
func (h *Handler) updateStatus(c *gin.Context) {
	aid, err := auctionID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body UpdateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.BadRequest(c, err)
		return
	}
	a, err := h.svc.UpdateStatus(c.Request.Context(), aid, models.Status(body.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		My participations
// @Tags			Participation
// @Param			from	query		string	false	"RFC3339 lower bound"
// @Param			to		query		string	false	"RFC3339 upper bound"
// @Success		200		{array}		models.Participation
// @Failure		400		{object}	ErrorResponse
// @Router			/me/participations [get]
func (h *Handler) history(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respond.BadRequest(c, err)
		return
	}
	id, _ := authz.Get(c)
	out, err := h.svc.UserHistory(c.Request.Context(), id.UserID, q.From, q.To)
	if err != nil {
		h.fail(c, err)
		return
	}
	if out == nil {
		out = []models.Participation{}
	}
	c.JSON(http.StatusOK, out)
}
