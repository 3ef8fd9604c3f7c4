package payu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gatewaylab/payu-gateway/infra/logger"
	"github.com/gatewaylab/payu-gateway/payment"
)

// ProcessorConfig carries the merchant settings the facade needs beyond
// the client credentials.
type ProcessorConfig struct {
	SecondKey string
	// NotifyURL and ContinueURL are templates; the {payment_id} placeholder
	// is replaced with the payment identifier.
	NotifyURL   string
	ContinueURL string
	// AllowMD5Callbacks permits legacy MD5-signed notifications.
	AllowMD5Callbacks bool
}

// Processor orchestrates the client, verifier and reconciler to satisfy
// the host framework's processor contract.
type Processor struct {
	client   *Client
	verifier Verifier
	cfg      ProcessorConfig
}

// NewProcessor creates a processor facade around client.
func NewProcessor(client *Client, cfg ProcessorConfig) *Processor {
	return &Processor{
		client:   client,
		verifier: Verifier{SecondKey: cfg.SecondKey, AllowMD5: cfg.AllowMD5Callbacks},
		cfg:      cfg,
	}
}

// TransactionResult tells the host how to hand the customer over to the
// payment page.
type TransactionResult struct {
	RedirectURL string
	Method      string
}

// ChargeResult reports the outcome of capturing a locked payment.
type ChargeResult struct {
	AmountCharged decimal.Decimal
	Success       bool
}

func (p *Processor) resolveURL(template, paymentID string) string {
	return strings.ReplaceAll(template, "{payment_id}", paymentID)
}

// PrepareTransaction registers a PayU order for the payment and returns
// the redirect the customer should follow. The gateway order id is
// recorded on the payment, at most once.
func (p *Processor) PrepareTransaction(ctx context.Context, pay *payment.Payment, customerIP string) (*TransactionResult, error) {
	order := OrderRequest{
		OrderID:     pay.ID(),
		Amount:      pay.AmountRequired,
		Currency:    pay.Currency,
		Description: pay.Description,
		CustomerIP:  customerIP,
		Products:    paymentProducts(pay),
	}
	if buyer := paymentBuyer(pay); buyer != nil {
		order.Buyer = buyer
	}
	if p.cfg.NotifyURL != "" {
		order.NotifyURL = p.resolveURL(p.cfg.NotifyURL, pay.ID())
	}
	if p.cfg.ContinueURL != "" {
		order.ContinueURL = p.resolveURL(p.cfg.ContinueURL, pay.ID())
	}

	response, err := p.client.NewOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	if orderID, ok := response["orderId"].(string); ok && orderID != "" {
		if err := pay.SetExternalID(orderID); err != nil {
			return nil, err
		}
	}

	redirect, _ := response["redirectUri"].(string)
	return &TransactionResult{RedirectURL: redirect, Method: http.MethodGet}, nil
}

// VerifyCallback authenticates an inbound notification against the exact
// bytes the gateway sent.
func (p *Processor) VerifyCallback(rawBody []byte, headers http.Header) error {
	return p.verifier.Verify(rawBody, headers)
}

// HandleCallback verifies an inbound PUSH notification and applies the
// payment-state transitions it licenses. Verification failures never reach
// the reconciler.
func (p *Processor) HandleCallback(pay *payment.Payment, rawBody []byte, headers http.Header) error {
	if err := p.verifier.Verify(rawBody, headers); err != nil {
		return err
	}

	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		return fmt.Errorf("payu: failed to parse notification: %w", err)
	}

	logger.Info("handling gateway notification", logger.LogContext{
		Provider: "payu",
		Fields:   map[string]any{"payment_id": pay.ID()},
	})
	return ApplyNotification(pay, data)
}

// FetchPaymentStatus polls the gateway for the order's current status and
// maps it onto the transition to request next. Nothing is fired here; the
// caller applies the event under its own guard discipline.
func (p *Processor) FetchPaymentStatus(ctx context.Context, pay *payment.Payment) (payment.Event, bool, error) {
	response, err := p.client.GetOrderInfo(ctx, pay.ExternalID())
	if err != nil {
		return "", false, err
	}

	orders, _ := response["orders"].([]any)
	if len(orders) == 0 {
		return "", false, nil
	}
	order, _ := orders[0].(map[string]any)
	status, _ := order["status"].(string)

	event, ok := NextAction(OrderStatus(status))
	return event, ok, nil
}

// Charge captures a locked (pre-authorized) payment. A nil amount charges
// the full locked amount.
func (p *Processor) Charge(ctx context.Context, pay *payment.Payment, amount *decimal.Decimal) (*ChargeResult, error) {
	response, err := p.client.Capture(ctx, pay.ExternalID())
	if err != nil {
		return nil, err
	}

	charged := pay.AmountLocked
	if amount != nil {
		charged = *amount
	}
	return &ChargeResult{
		AmountCharged: charged,
		Success:       responseStatusCode(response) == ResponseStatusSuccess,
	}, nil
}

// ReleaseLock cancels the order, releasing the pre-authorization hold.
// Returns the amount released; zero when the gateway reports a non-success
// status, which is a reported zero-effect outcome, not an error.
func (p *Processor) ReleaseLock(ctx context.Context, pay *payment.Payment) (decimal.Decimal, error) {
	response, err := p.client.CancelOrder(ctx, pay.ExternalID())
	if err != nil {
		return decimal.Zero, err
	}
	if responseStatusCode(response) == ResponseStatusSuccess {
		return pay.AmountLocked, nil
	}
	return decimal.Zero, nil
}

// StartRefund requests a refund with the gateway. A nil amount refunds the
// full paid amount. The refund is asynchronous: the state change arrives
// later as a refund notification.
func (p *Processor) StartRefund(ctx context.Context, pay *payment.Payment, amount *decimal.Decimal, description string) (decimal.Decimal, error) {
	_, err := p.client.Refund(ctx, pay.ExternalID(), RefundOptions{
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if amount != nil {
		return *amount, nil
	}
	return pay.AmountPaid, nil
}

// responseStatusCode digs status.statusCode out of a response envelope.
func responseStatusCode(response map[string]any) ResponseStatus {
	status, _ := response["status"].(map[string]any)
	code, _ := status["statusCode"].(string)
	return ResponseStatus(code)
}

// paymentBuyer maps the payment's buyer contact onto the gateway's buyer
// object, restricted to the safe subset. Returns nil when no field is set
// so the buyer object is omitted entirely.
func paymentBuyer(pay *payment.Payment) *Buyer {
	b := Buyer{
		Email:     pay.Buyer.Email,
		FirstName: pay.Buyer.FirstName,
		LastName:  pay.Buyer.LastName,
		Phone:     pay.Buyer.Phone,
	}
	if b == (Buyer{}) {
		return nil
	}
	return &b
}

// paymentProducts maps the payment's line items onto gateway products.
// With no line items the client falls back to a single whole-order line.
func paymentProducts(pay *payment.Payment) []Product {
	products := make([]Product, len(pay.Items))
	for i, item := range pay.Items {
		products[i] = Product{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return products
}
