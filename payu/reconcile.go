package payu

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gatewaylab/payu-gateway/infra/logger"
	"github.com/gatewaylab/payu-gateway/payment"
)

// ApplyNotification maps a verified PUSH notification onto payment state
// transitions. The notification carries either an "order" or a "refund"
// object; anything else is ignored. PayU delivers at least once, so every
// state-changing call is guarded and repeated deliveries are no-ops.
func ApplyNotification(m payment.Machine, data map[string]any) error {
	if order, ok := data["order"].(map[string]any); ok {
		return applyOrderNotification(m, order)
	}
	if refund, ok := data["refund"].(map[string]any); ok {
		return applyRefundNotification(m, refund)
	}
	logger.Debug("notification carries neither order nor refund", logger.LogContext{
		Provider: "payu",
		Fields:   map[string]any{"payment_id": m.ID()},
	})
	return nil
}

func applyOrderNotification(m payment.Machine, order map[string]any) error {
	status, _ := order["status"].(string)

	switch OrderStatus(status) {
	case OrderStatusCompleted:
		if m.CanFire(payment.EventConfirmPayment) {
			if err := m.Fire(payment.EventConfirmPayment); err != nil {
				return err
			}
			return tryFire(m, payment.EventMarkAsPaid)
		}
		logger.Debug("cannot confirm payment", logger.LogContext{
			Provider: "payu",
			Fields: map[string]any{
				"payment_id":     m.ID(),
				"payment_status": m.Status(),
			},
		})
	case OrderStatusCanceled:
		return m.Fire(payment.EventFail)
	case OrderStatusWaitingForConfirmation:
		if m.CanFire(payment.EventConfirmLock) {
			return m.Fire(payment.EventConfirmLock)
		}
		logger.Debug("already locked", logger.LogContext{
			Provider: "payu",
			Fields: map[string]any{
				"payment_id":     m.ID(),
				"payment_status": m.Status(),
			},
		})
	case OrderStatusNew, OrderStatusPending:
		// Informational only.
	}
	return nil
}

func applyRefundNotification(m payment.Machine, refund map[string]any) error {
	status, _ := refund["status"].(string)

	switch RefundStatus(status) {
	case RefundStatusFinalized:
		// Redelivered FINALIZED notifications carry the same refund id;
		// crediting the amount again would corrupt the refund ledger.
		refundID := refundIdentity(refund)
		if refundID != "" && m.RefundApplied(refundID) {
			logger.Debug("refund already applied", logger.LogContext{
				Provider: "payu",
				Fields: map[string]any{
					"payment_id": m.ID(),
					"refund_id":  refundID,
				},
			})
			return nil
		}
		// The gateway expresses refund amounts in minor units.
		amount, err := refundAmount(refund["amount"])
		if err != nil {
			return err
		}
		if m.CanFire(payment.EventConfirmRefund) {
			if err := m.Fire(payment.EventConfirmRefund, amount); err != nil {
				return err
			}
			m.RecordRefund(refundID)
			return tryFire(m, payment.EventMarkAsRefunded)
		}
		logger.Debug("cannot confirm refund", logger.LogContext{
			Provider: "payu",
			Fields: map[string]any{
				"payment_id":     m.ID(),
				"payment_status": m.Status(),
			},
		})
	case RefundStatusCanceled:
		if m.CanFire(payment.EventCancelRefund) {
			if err := m.Fire(payment.EventCancelRefund); err != nil {
				return err
			}
			return tryFire(m, payment.EventMarkAsPaid)
		}
		logger.Debug("cannot cancel refund", logger.LogContext{
			Provider: "payu",
			Fields: map[string]any{
				"payment_id":     m.ID(),
				"payment_status": m.Status(),
			},
		})
	case RefundStatusPending:
		// No transition.
	}
	return nil
}

// tryFire applies an optimistic follow-up transition, swallowing only the
// machine's own "illegal transition" rejection. Any other error is real
// and propagates.
func tryFire(m payment.Machine, event payment.Event) error {
	err := m.Fire(event)
	if errors.Is(err, payment.ErrTransitionNotAllowed) {
		return nil
	}
	return err
}

// refundIdentity extracts the id that makes a refund notification unique.
// PayU sets refundId; extRefundId is the merchant-side fallback. A
// notification without either cannot be deduplicated.
func refundIdentity(refund map[string]any) string {
	for _, key := range []string{"refundId", "extRefundId"} {
		switch v := refund[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

// refundAmount converts a minor-unit wire amount into a decimal.
func refundAmount(v any) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	d, ok := toDecimal(v)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("payu: unparseable refund amount %v", v)
	}
	return d.Shift(-2), nil
}

// NextAction maps a polled order status onto the transition the caller
// should request next. Unlike the push path, nothing is fired here: the
// caller applies the event under the same guard discipline.
func NextAction(status OrderStatus) (payment.Event, bool) {
	switch status {
	case OrderStatusNew, OrderStatusPending:
		return payment.EventConfirmPrepared, true
	case OrderStatusCanceled:
		return payment.EventFail, true
	case OrderStatusCompleted:
		return payment.EventConfirmPayment, true
	case OrderStatusWaitingForConfirmation:
		return payment.EventConfirmLock, true
	default:
		return "", false
	}
}
