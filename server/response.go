package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/flowkit/errors"
)

// DataResponse wraps successful payloads as {"data": ...}.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes err as {"error": {...}} and aborts the chain.
// Errors that are not AppErrors become 500 INTERNAL_ERROR without their
// message.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		_ = c.Error(err)
		appErr = apperrors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

func RespondOK(c *gin.Context, data any)       { c.JSON(http.StatusOK, DataResponse{Data: data}) }
func RespondAccepted(c *gin.Context, data any) { c.JSON(http.StatusAccepted, DataResponse{Data: data}) }
func RespondNoContent(c *gin.Context)          { c.Status(http.StatusNoContent) }
