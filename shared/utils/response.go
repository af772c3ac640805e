package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/sirupsen/logrus"
)

// APIResponse is the envelope every endpoint responds with
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends a failure envelope. Middleware callers still need to Abort.
func ErrorResponse(c *gin.Context, statusCode int, message string, errs ...string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

// RenderError maps err onto the failure envelope. Application errors keep
// their messages; anything else is logged and rendered as a generic 500.
func RenderError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
		}).WithError(err).Error("Unhandled error")
		InternalServerErrorResponse(c, "Something went wrong. Contact Admin")
		return
	}

	message := string(appErr.Kind)
	if len(appErr.Messages) > 0 {
		message = appErr.Messages[0]
	}
	if appErr.Kind == apperrors.KindIdentity {
		logrus.WithField("errors", appErr.Messages).Warn("Identity operation rejected")
		message = "Identity operation failed"
	}
	ErrorResponse(c, appErr.StatusCode(), message, appErr.Messages...)
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c *gin.Context, message string, errs ...string) {
	ErrorResponse(c, http.StatusBadRequest, message, errs...)
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

// ForbiddenResponse sends a 403 Forbidden response
func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

// InternalServerErrorResponse sends a 500 Internal Server Error response
func InternalServerErrorResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// ServiceUnavailableResponse sends a 503 Service Unavailable response
func ServiceUnavailableResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, message)
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	SuccessResponse(c, http.StatusCreated, message, data)
}

// OKResponse sends a 200 OK response
func OKResponse(c *gin.Context, message string, data interface{}) {
	SuccessResponse(c, http.StatusOK, message, data)
}
