package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Status represents the current lifecycle state of a payment.
type Status string

const (
	StatusNew               Status = "new"
	StatusPrepared          Status = "prepared"
	StatusLocked            Status = "locked"
	StatusCharged           Status = "charged"
	StatusPaid              Status = "paid"
	StatusFailed            Status = "failed"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusRefunded          Status = "refunded"
)

// Event is a named transition of the payment state machine.
type Event string

const (
	EventConfirmPrepared Event = "confirm_prepared"
	EventConfirmLock     Event = "confirm_lock"
	EventConfirmPayment  Event = "confirm_payment"
	EventMarkAsPaid      Event = "mark_as_paid"
	EventFail            Event = "fail"
	EventConfirmRefund   Event = "confirm_refund"
	EventCancelRefund    Event = "cancel_refund"
	EventMarkAsRefunded  Event = "mark_as_refunded"
)

// ErrTransitionNotAllowed is returned by Fire when the requested event is
// not legal from the payment's current state or its guard rejects it.
var ErrTransitionNotAllowed = errors.New("payment: transition not allowed")

// ErrExternalIDAssigned is returned when a different gateway order id is
// assigned to a payment that already carries one.
var ErrExternalIDAssigned = errors.New("payment: external order id already assigned")

// Machine is the transition surface of the payment state machine that the
// gateway adapter drives. The adapter decides which event a gateway
// notification licenses; the machine enforces its own transition table.
type Machine interface {
	ID() string
	Status() Status
	// CanFire reports whether event is currently legal, including guards.
	CanFire(event Event) bool
	// Fire applies event. Amount-bearing events (confirm_refund) read the
	// optional amount argument; all other events ignore it. Returns
	// ErrTransitionNotAllowed when the transition table or a guard rejects
	// the event.
	Fire(event Event, amount ...decimal.Decimal) error
	// RefundApplied reports whether the gateway refund id has already been
	// credited to this payment.
	RefundApplied(refundID string) bool
	// RecordRefund marks a gateway refund id as credited.
	RecordRefund(refundID string)
}

// Buyer holds the contact fields a payment is allowed to share with the
// gateway.
type Buyer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LineItem is a single order line.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Payment is the reference implementation of Machine backed by an explicit
// transition table. Amounts are kept as decimals; conversion to the
// gateway's minor-unit wire format happens in the adapter, never here.
type Payment struct {
	id          string
	status      Status
	externalID  string
	Currency    string
	Description string
	Buyer       Buyer
	Items       []LineItem

	AmountRequired decimal.Decimal
	AmountLocked   decimal.Decimal
	AmountPaid     decimal.Decimal
	AmountRefunded decimal.Decimal

	refundIDs []string
}

// New creates a payment in the "new" state.
func New(id, currency string, amount decimal.Decimal) *Payment {
	return &Payment{
		id:             id,
		status:         StatusNew,
		Currency:       currency,
		AmountRequired: amount,
	}
}

// Restore rebuilds a payment loaded from storage with an explicit status.
func Restore(id string, status Status) *Payment {
	return &Payment{id: id, status: status}
}

func (p *Payment) ID() string     { return p.id }
func (p *Payment) Status() Status { return p.status }

// ExternalID returns the gateway order id, or "" if not yet assigned.
func (p *Payment) ExternalID() string { return p.externalID }

// SetExternalID records the gateway order id. The id is assigned at most
// once; repeating the same value is a no-op, any other value is rejected.
func (p *Payment) SetExternalID(id string) error {
	if p.externalID != "" && p.externalID != id {
		return fmt.Errorf("%w: have %q, got %q", ErrExternalIDAssigned, p.externalID, id)
	}
	p.externalID = id
	return nil
}

// SetStatus overrides the current status. Intended for storage layers
// restoring persisted payments, not for business code.
func (p *Payment) SetStatus(status Status) { p.status = status }

// RefundApplied reports whether a gateway refund id has already been
// credited. The gateway delivers refund notifications at least once; the
// id ledger keeps a redelivered FINALIZED refund from counting twice.
func (p *Payment) RefundApplied(refundID string) bool {
	for _, id := range p.refundIDs {
		if id == refundID {
			return true
		}
	}
	return false
}

// RecordRefund marks a gateway refund id as credited. Empty ids and
// repeats are no-ops.
func (p *Payment) RecordRefund(refundID string) {
	if refundID == "" || p.RefundApplied(refundID) {
		return
	}
	p.refundIDs = append(p.refundIDs, refundID)
}

// AppliedRefunds returns the gateway refund ids credited so far, in
// application order.
func (p *Payment) AppliedRefunds() []string { return p.refundIDs }

// IsFullyPaid reports whether the paid amount covers the required amount.
func (p *Payment) IsFullyPaid() bool {
	return p.AmountPaid.GreaterThanOrEqual(p.AmountRequired)
}

// IsFullyRefunded reports whether the refunded amount covers the paid amount.
func (p *Payment) IsFullyRefunded() bool {
	return p.AmountPaid.GreaterThan(decimal.Zero) &&
		p.AmountRefunded.GreaterThanOrEqual(p.AmountPaid)
}

// transitions maps each event to the set of source states it is legal from
// and the state it leads to. The "fail" self-loop on failed keeps repeated
// cancellation notifications idempotent.
var transitions = map[Event]map[Status]Status{
	EventConfirmPrepared: {
		StatusNew: StatusPrepared,
	},
	EventConfirmLock: {
		StatusNew:      StatusLocked,
		StatusPrepared: StatusLocked,
	},
	EventConfirmPayment: {
		StatusNew:      StatusCharged,
		StatusPrepared: StatusCharged,
		StatusLocked:   StatusCharged,
	},
	EventMarkAsPaid: {
		StatusCharged: StatusPaid,
	},
	EventFail: {
		StatusNew:      StatusFailed,
		StatusPrepared: StatusFailed,
		StatusLocked:   StatusFailed,
		StatusCharged:  StatusFailed,
		StatusFailed:   StatusFailed,
	},
	EventConfirmRefund: {
		StatusPaid:              StatusPartiallyRefunded,
		StatusCharged:           StatusPartiallyRefunded,
		StatusPartiallyRefunded: StatusPartiallyRefunded,
	},
	EventCancelRefund: {
		StatusPaid:              StatusCharged,
		StatusPartiallyRefunded: StatusCharged,
	},
	EventMarkAsRefunded: {
		StatusPartiallyRefunded: StatusRefunded,
	},
}

// CanFire reports whether event is legal from the current state, including
// the guards on the terminal mark events.
func (p *Payment) CanFire(event Event) bool {
	if _, ok := transitions[event][p.status]; !ok {
		return false
	}
	switch event {
	case EventMarkAsPaid:
		return p.IsFullyPaid()
	case EventMarkAsRefunded:
		return p.IsFullyRefunded()
	}
	return true
}

// Fire applies event, updating status and the amount ledger.
func (p *Payment) Fire(event Event, amount ...decimal.Decimal) error {
	if !p.CanFire(event) {
		return fmt.Errorf("%w: %s from %s", ErrTransitionNotAllowed, event, p.status)
	}
	next := transitions[event][p.status]

	switch event {
	case EventConfirmLock:
		p.AmountLocked = p.AmountRequired
	case EventConfirmPayment:
		p.AmountPaid = p.AmountRequired
		p.AmountLocked = decimal.Zero
	case EventConfirmRefund:
		if len(amount) == 0 {
			return fmt.Errorf("payment: %s requires an amount", EventConfirmRefund)
		}
		p.AmountRefunded = p.AmountRefunded.Add(amount[0])
	}

	p.status = next
	return nil
}
