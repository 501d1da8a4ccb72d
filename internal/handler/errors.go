package handler

import (
	"errors"
	"net/http"

	"leavemgmt/internal/logging"
	"leavemgmt/internal/service"
	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyDecided):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Unexpected errors are logged and replaced by a generic message.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		if logger := logging.FromContext(c.Request.Context()); logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed", "error", err, "error_kind", service.ErrorKind(err))
		}
		message = "Internal server error"
	}
	c.JSON(status, response.Error(status, message))
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
