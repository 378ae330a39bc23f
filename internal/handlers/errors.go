// Package handlers maps HTTP requests onto the services and the cycle
// engine, and engine errors back onto status codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dapoalex/AjoPool/internal/engine"
	"github.com/dapoalex/AjoPool/internal/rotation"
	"github.com/dapoalex/AjoPool/internal/services"
	"github.com/dapoalex/AjoPool/internal/store"
)

// respondError translates domain errors into status codes. Validation errors
// carry their full result so clients can show every violation at once.
func respondError(c *gin.Context, err error) {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "validation failed",
			"details":  verr.Result.Errors,
			"warnings": verr.Result.Warnings,
		})
		return
	}

	var ierr *engine.IncompletePaymentsError
	if errors.As(err, &ierr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           err.Error(),
			"percent_covered": ierr.Percent,
		})
		return
	}

	switch {
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrDuplicatePayout),
		errors.Is(err, engine.ErrConcurrentModification),
		errors.Is(err, engine.ErrInactiveGroup),
		errors.Is(err, engine.ErrAlreadyPaid),
		errors.Is(err, engine.ErrPayoutNotRetryable),
		errors.Is(err, services.ErrMembershipRace),
		errors.Is(err, services.ErrAdminCannotLeave):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrNoRecipient), errors.Is(err, rotation.ErrEmptyRotation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotAMember):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case store.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable, retry shortly"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// callerID returns the authenticated user set by the auth middleware.
func callerID(c *gin.Context) string {
	return c.GetString("user_id")
}
