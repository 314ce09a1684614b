package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

const (
	defaultRequestTimeout = 3 * time.Second
	defaultSendTimeout    = 5 * time.Second
)

// normalizeTimeout guards against unset configuration.
func normalizeTimeout(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// statusFor maps application error codes to HTTP status.
func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeTransport:
		// Only retryable upstream faults answer 502.
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func replyError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":     err.Error(),
		"code":      apperr.CodeOf(err),
		"retryable": apperr.Retryable(err),
	})
}
