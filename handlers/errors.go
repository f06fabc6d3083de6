package handlers

import (
	"errors"
	"net/http"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps domain errors onto HTTP statuses. Invariant
// violations get a generic body; the detail only goes to the log.
func respondError(c *gin.Context, module string, funcName string, err error) {
	var validationErr *utils.ValidationError
	var insufficientErr *utils.InsufficientStockError
	var overReceiptErr *utils.OverReceiptError
	var transitionErr *utils.InvalidTransitionError
	var invariantErr *utils.InvariantViolationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficientErr.Error(),
			"sku":       insufficientErr.Sku,
			"requested": insufficientErr.Requested,
			"available": insufficientErr.Available,
		})
	case errors.As(err, &overReceiptErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     overReceiptErr.Error(),
			"sku":       overReceiptErr.Sku,
			"received":  overReceiptErr.Received,
			"remaining": overReceiptErr.Remaining,
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &invariantErr):
		config.LogError(config.GetLogger(), module, funcName, "invariant violation", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrMfaRequired),
		errors.Is(err, models.ErrMfaInvalid),
		errors.Is(err, models.ErrSessionExpired),
		errors.Is(err, models.ErrResetTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAccountLocked):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), module, funcName, "unhandled error", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
