package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/oidcrp/errors"
	"github.com/kbukum/oidcrp/logger"
)

// RespondWithError renders err as an ErrorResponse. Unknown errors become a
// generic 500 and are logged; their text is never sent to the client.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		logger.WithComponent("http").WithContext(c.Request.Context()).
			Error("unhandled error", logger.Fields(logger.FieldError, err.Error(), "path", c.FullPath()))
		appErr = apperrors.Internal(err)
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, appErr.ToResponse())
}

// RespondOK writes data as a 200 JSON body.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}
