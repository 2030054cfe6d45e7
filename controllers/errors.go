package controllers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"committeehub/middlewares"
	"committeehub/models"
	"committeehub/services"
	"committeehub/structs"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTimeout bounds every store round trip made on behalf of a request.
const DefaultTimeout = 10 * time.Second

// statusFor maps a service error onto an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrSpecialMotionsDisabled):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrPermissionDenied), errors.Is(err, services.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateOwner), errors.Is(err, services.ErrOwnerRequired), errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// base holds what every handler group needs.
type base struct {
	logger  *slog.Logger
	timeout time.Duration
}

func newBase(logger *slog.Logger, timeout time.Duration) base {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return base{logger: logger, timeout: timeout}
}

func (b base) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), b.timeout)
}

func (b base) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		hub.Scope().SetTag("route", c.FullPath())
		hub.CaptureException(err)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (b base) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": structs.BindingMessage(err)})
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be omitted entirely.
func (b base) bindOptional(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": structs.BindingMessage(err)})
	return false
}

// objectID reads a hex id path parameter. Malformed ids are reported as not
// found, the same as ids that do not exist.
func (b base) objectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrNotFound.Error()})
		return primitive.NilObjectID, false
	}
	return id, true
}

func identity(c *gin.Context) models.Identity {
	return middlewares.CurrentIdentity(c)
}
