package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "peercall/pkg/errors"
	"peercall/pkg/logger"
)

// ErrorBody is the JSON body of every non-2xx response
type ErrorBody struct {
	Error string `json:"error"` // Human-readable error message
	Code  string `json:"code"`  // Error code (e.g., "VALIDATION_ERROR")
}

// SuccessBody acknowledges a write that returns no data
type SuccessBody struct {
	Success bool `json:"success"`
}

// OK sends a 200 response with the given body
func OK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

// Acknowledge sends {"success": true}
func Acknowledge(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessBody{Success: true})
}

// Error sends an error response
func Error(c *gin.Context, statusCode int, errorCode, errorMessage string) {
	c.JSON(statusCode, ErrorBody{
		Error: errorMessage,
		Code:  errorCode,
	})
}

// ValidationError sends a validation error response (400)
func ValidationError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, string(apperrors.ErrCodeValidation), message)
}

// InternalError sends internal server error (500)
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, string(apperrors.ErrCodeInternal), message)
}

// FromError maps err onto its AppError status and body. Server-side
// failures are logged with the underlying cause, which is never sent.
func FromError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(appErr.Code)),
			zap.Error(appErr.Err))
	}
	Error(c, appErr.StatusCode, string(appErr.Code), appErr.Message)
}
