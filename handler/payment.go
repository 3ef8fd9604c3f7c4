package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gatewaylab/payu-gateway/infra/logger"
	"github.com/gatewaylab/payu-gateway/infra/middle"
	"github.com/gatewaylab/payu-gateway/infra/response"
	"github.com/gatewaylab/payu-gateway/payment"
	"github.com/gatewaylab/payu-gateway/payu"
)

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	store     *payment.Store
	processor *payu.Processor
	validate  *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(store *payment.Store, processor *payu.Processor, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		store:     store,
		processor: processor,
		validate:  validate,
	}
}

// CreatePaymentRequest is the inbound shape for creating a payment
type CreatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Description string          `json:"description"`
	Buyer       payment.Buyer   `json:"buyer"`
	Items       []struct {
		Name      string          `json:"name" validate:"required"`
		UnitPrice decimal.Decimal `json:"unitPrice" validate:"required"`
		Quantity  int             `json:"quantity" validate:"required,min=1"`
	} `json:"items" validate:"dive"`
}

// paymentView is the outbound representation of a payment
type paymentView struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ExternalID     string `json:"externalId,omitempty"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
	AmountRequired string `json:"amountRequired"`
	AmountLocked   string `json:"amountLocked"`
	AmountPaid     string `json:"amountPaid"`
	AmountRefunded string `json:"amountRefunded"`
	RedirectURL    string `json:"redirectUrl,omitempty"`
}

func viewOf(p *payment.Payment) paymentView {
	return paymentView{
		ID:             p.ID(),
		Status:         string(p.Status()),
		ExternalID:     p.ExternalID(),
		Currency:       p.Currency,
		Description:    p.Description,
		AmountRequired: p.AmountRequired.String(),
		AmountLocked:   p.AmountLocked.String(),
		AmountPaid:     p.AmountPaid.String(),
		AmountRefunded: p.AmountRefunded.String(),
	}
}

// CreatePayment registers a new payment with the gateway and returns the
// redirect the customer should follow to the payment page.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}
	if !payu.IsCurrencySupported(req.Currency) {
		response.Error(w, http.StatusBadRequest, "Unsupported currency", nil)
		return
	}
	if !req.Amount.IsPositive() {
		response.Error(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	pay := payment.New(uuid.New().String(), req.Currency, req.Amount)
	pay.Description = req.Description
	pay.Buyer = req.Buyer
	for _, item := range req.Items {
		pay.Items = append(pay.Items, payment.LineItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.processor.PrepareTransaction(ctx, pay, middle.GetClientIP(r))
	if err != nil {
		logger.Error("Failed to prepare transaction", err, logger.LogContext{
			Provider: "payu",
			Fields:   map[string]any{"payment_id": pay.ID()},
		})
		response.Error(w, http.StatusBadGateway, "Payment registration failed", err)
		return
	}

	if err := h.store.Save(pay); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to persist payment", err)
		return
	}

	view := viewOf(pay)
	view.RedirectURL = result.RedirectURL
	response.Success(w, http.StatusCreated, "Payment created", view)
}

// GetPayment returns the stored state of a payment
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	pay, ok := h.loadPayment(w, r)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, "Payment retrieved", viewOf(pay))
}

// SyncPayment polls the gateway for the order's current status and applies
// the transition it licenses, if any.
func (h *PaymentHandler) SyncPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	pay, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	event, found, err := h.processor.FetchPaymentStatus(ctx, pay)
	if err != nil {
		response.Error(w, http.StatusBadGateway, "Failed to fetch payment status", err)
		return
	}

	if found && pay.CanFire(event) {
		if err := pay.Fire(event); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to apply status", err)
			return
		}
		if err := h.store.Save(pay); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to persist payment", err)
			return
		}
	}

	response.Success(w, http.StatusOK, "Payment synced", viewOf(pay))
}

// CapturePayment captures a locked (pre-authorized) payment
func (h *PaymentHandler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	pay, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	result, err := h.processor.Charge(ctx, pay, nil)
	if err != nil {
		response.Error(w, http.StatusBadGateway, "Capture failed", err)
		return
	}

	if result.Success && pay.CanFire(payment.EventConfirmPayment) {
		if err := pay.Fire(payment.EventConfirmPayment); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to apply capture", err)
			return
		}
		if err := h.store.Save(pay); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to persist payment", err)
			return
		}
	}

	response.Success(w, http.StatusOK, "Capture requested", map[string]any{
		"payment":       viewOf(pay),
		"amountCharged": result.AmountCharged.String(),
		"captured":      result.Success,
	})
}

// ReleasePayment cancels the order, releasing the pre-authorization hold
func (h *PaymentHandler) ReleasePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	pay, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	released, err := h.processor.ReleaseLock(ctx, pay)
	if err != nil {
		response.Error(w, http.StatusBadGateway, "Release failed", err)
		return
	}

	if released.IsPositive() && pay.CanFire(payment.EventFail) {
		pay.AmountLocked = decimal.Zero
		if err := pay.Fire(payment.EventFail); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to apply release", err)
			return
		}
		if err := h.store.Save(pay); err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to persist payment", err)
			return
		}
	}

	response.Success(w, http.StatusOK, "Release requested", map[string]any{
		"payment":        viewOf(pay),
		"amountReleased": released.String(),
	})
}

// RefundPaymentRequest is the inbound shape for a refund
type RefundPaymentRequest struct {
	// Amount omitted means full refund
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
}

// RefundPayment starts a refund with the gateway. The refund is
// asynchronous: the state change arrives later as a notification.
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	pay, ok := h.loadPayment(w, r)
	if !ok {
		return
	}

	var req RefundPaymentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request format", err)
			return
		}
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		response.Error(w, http.StatusBadRequest, "Refund amount must be positive", nil)
		return
	}

	requested, err := h.processor.StartRefund(ctx, pay, req.Amount, req.Description)
	if err != nil {
		response.Error(w, http.StatusBadGateway, "Refund failed", err)
		return
	}

	response.Success(w, http.StatusAccepted, "Refund requested", map[string]any{
		"payment":         viewOf(pay),
		"amountRequested": requested.String(),
	})
}

func (h *PaymentHandler) loadPayment(w http.ResponseWriter, r *http.Request) (*payment.Payment, bool) {
	paymentID := chi.URLParam(r, "paymentID")
	if paymentID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return nil, false
	}

	pay, err := h.store.Get(paymentID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Payment not found", nil)
			return nil, false
		}
		response.Error(w, http.StatusInternalServerError, "Failed to load payment", err)
		return nil, false
	}
	return pay, true
}
