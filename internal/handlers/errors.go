package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"consult-platform/internal/apperr"
	"consult-platform/internal/repo"
	"consult-platform/pkg/logger"
)

// writeError maps the core error taxonomy onto HTTP responses. The error
// message is the human-readable reason the core produced.
func writeError(c *gin.Context, err error) {
	var (
		validation   *apperr.ValidationError
		policy       *apperr.PolicyViolation
		transition   *apperr.InvalidTransition
		insufficient *apperr.InsufficientBalance
		persistence  *apperr.PersistenceFailure
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Reason})
	case errors.As(err, &policy):
		c.JSON(http.StatusForbidden, gin.H{"error": policy.Reason})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": transition.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": insufficient.Error()})
	case errors.As(err, &persistence):
		logger.Errorf("persistence failure: %v", persistence)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "State could not be saved, please retry."})
	case errors.Is(err, repo.ErrAccountNotFound), errors.Is(err, repo.ErrBookingNotFound), errors.Is(err, repo.ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Errorf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
	}
}
