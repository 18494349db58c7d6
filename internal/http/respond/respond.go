package respond

import (
	"github.com/gin-gonic/gin"

	"sealedbid/internal/apperr"
)

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

// Error aborts the request with the status mapped from the error kind.
// Internal causes are only shown when expose is set.
func Error(c *gin.Context, err error, expose bool) {
	c.AbortWithStatusJSON(apperr.KindOf(err).Status(), ErrorResponse{Error: apperr.PublicMessage(err, expose)})
}

// BadRequest renders binding failures, which never carry an apperr kind.
func BadRequest(c *gin.Context, err error) {
	Error(c, apperr.Wrap(apperr.Validation, err, err.Error()), false)
}
