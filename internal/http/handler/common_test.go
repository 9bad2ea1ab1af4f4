package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/straye-as/purchasing-api/internal/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrLineItemNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", service.ErrOrderNotFound), http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: exceeds remaining", service.ErrInvalidQuantity), http.StatusBadRequest},
		{service.ErrInvalidAmount, http.StatusBadRequest},
		{service.ErrInvalidTransition, http.StatusConflict},
		{service.ErrConcurrentModification, http.StatusConflict},
		{service.ErrResourceBusy, http.StatusConflict},
		{service.ErrInvoiceAlreadyGrouped, http.StatusConflict},
		{service.ErrCurrencyMismatch, http.StatusUnprocessableEntity},
		{service.ErrNegativeGrandTotal, http.StatusUnprocessableEntity},
		{service.ErrSupplierInactive, http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	t.Run("busy sets retry-after", func(t *testing.T) {
		w := httptest.NewRecorder()
		handleServiceError(w, zap.NewNop(), "Failed to record shipment", service.ErrResourceBusy)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("internal errors hide details", func(t *testing.T) {
		w := httptest.NewRecorder()
		handleServiceError(w, zap.NewNop(), "Failed to record shipment", errors.New("pq: password authentication failed"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
		assert.Contains(t, w.Body.String(), "Failed to record shipment")
	})
}
