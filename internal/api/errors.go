package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"volunteerledger/internal/donations"
	"volunteerledger/internal/events"
	"volunteerledger/internal/gallery"
	"volunteerledger/internal/ledger"
	"volunteerledger/internal/users"
)

// statusFor lists the errors a client can act on. The message of a matched
// error is returned to the caller; anything else is a 500 with a fixed text.
var statusFor = []struct {
	err    error
	status int
}{
	{ledger.ErrValidation, http.StatusBadRequest},
	{ledger.ErrNegativeTotal, http.StatusBadRequest},
	{users.ErrValidation, http.StatusBadRequest},
	{events.ErrValidation, http.StatusBadRequest},
	{gallery.ErrValidation, http.StatusBadRequest},
	{donations.ErrValidation, http.StatusBadRequest},

	{users.ErrInvalidCredentials, http.StatusUnauthorized},

	{ledger.ErrForbidden, http.StatusForbidden},
	{users.ErrForbidden, http.StatusForbidden},
	{events.ErrForbidden, http.StatusForbidden},
	{gallery.ErrForbidden, http.StatusForbidden},
	{donations.ErrForbidden, http.StatusForbidden},

	{ledger.ErrUnknownVolunteer, http.StatusNotFound},
	{events.ErrNotFound, http.StatusNotFound},
	{gallery.ErrNotFound, http.StatusNotFound},

	{ledger.ErrAlreadyMarked, http.StatusConflict},
	{users.ErrEmailTaken, http.StatusConflict},

	{gallery.ErrStorageUnavailable, http.StatusServiceUnavailable},
}

func statusOf(err error) (int, bool) {
	for _, s := range statusFor {
		if errors.Is(err, s.err) {
			return s.status, true
		}
	}
	return http.StatusInternalServerError, false
}

func (h *handler) fail(c *gin.Context, op string, err error) {
	status, known := statusOf(err)
	if !known {
		h.Log.Error("request failed", zap.String("operation", op), zap.Error(err))
		c.JSON(status, gin.H{"error": "operation failed"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
