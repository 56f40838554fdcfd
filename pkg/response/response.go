package response

import (
	"errors"
	"net/http"

	"scoring-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Detail is the body shape of every failure response.
type Detail struct {
	Detail string `json:"detail"`
}

// OK sends a 200 response with the payload as-is.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error sends a failure response. If err is (or wraps) an *apperror.AppError
// the mapped status and message are used, otherwise the client sees a
// generic 500. The internal cause never reaches the body.
func Error(c *gin.Context, err error) {
	status, detail := classify(err)
	c.JSON(status, Detail{Detail: detail})
}

// AbortError is the middleware variant of Error: it writes the failure
// response and stops the handler chain.
func AbortError(c *gin.Context, err error) {
	status, detail := classify(err)
	c.AbortWithStatusJSON(status, Detail{Detail: detail})
}

func classify(err error) (int, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, appErr.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}
