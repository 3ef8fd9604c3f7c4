package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatewaylab/payu-gateway/infra/logger"
	"github.com/gatewaylab/payu-gateway/infra/response"
	"github.com/gatewaylab/payu-gateway/payment"
	"github.com/gatewaylab/payu-gateway/payu"
)

// WebhookHandler receives gateway notifications
type WebhookHandler struct {
	store     *payment.Store
	processor *payu.Processor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(store *payment.Store, processor *payu.Processor) *WebhookHandler {
	return &WebhookHandler{store: store, processor: processor}
}

// HandleNotification verifies an inbound PayU notification against the raw
// request bytes and applies the payment transitions it licenses. PayU
// retries any non-2xx response.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if paymentID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	// The signature covers the exact bytes on the wire, so the body must
	// be read before any parsing.
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	pay, err := h.store.Get(paymentID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Payment not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to load payment", err)
		return
	}

	if err := h.processor.HandleCallback(pay, rawBody, r.Header); err != nil {
		var cbErr *payu.InvalidCallbackError
		if errors.As(err, &cbErr) {
			logger.Warn("Rejected gateway notification", logger.LogContext{
				Provider:  "payu",
				RequestID: r.Header.Get("X-Request-ID"),
				Fields: map[string]any{
					"payment_id": paymentID,
					"reason":     string(cbErr.Code),
				},
			})
			response.Error(w, http.StatusBadRequest, "Invalid notification signature", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to process notification", err)
		return
	}

	if err := h.store.Save(pay); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to persist payment", err)
		return
	}

	response.Success(w, http.StatusOK, "Notification processed", map[string]any{
		"status": string(pay.Status()),
	})
}
