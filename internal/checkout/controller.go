package checkout

import (
	"time"

	"github.com/roach88/cartsync/internal/cart"
)

// Status is a copy of the controller's state for readers outside the
// session loop.
type Status struct {
	Phase   Phase
	Invoice *Invoice
	Payment *PaymentRequest
}

// Controller is the checkout state machine.
//
// It reads the live cart only when an invoice is opened and, while Paid, to
// detect the empty cart that ends the cycle. Not safe for concurrent use;
// the session loop is its only caller.
type Controller struct {
	phase   Phase
	invoice *Invoice
	payment *PaymentRequest
	ids     IDGenerator
}

// NewController starts Idle. A nil ids uses UUIDv7Generator.
func NewController(ids IDGenerator) *Controller {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Controller{phase: Idle, ids: ids}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Status returns a copy of the current checkout state.
func (c *Controller) Status() Status {
	st := Status{Phase: c.phase}
	if c.invoice != nil {
		inv := c.invoice.clone()
		st.Invoice = &inv
	}
	if c.payment != nil {
		pr := *c.payment
		pr.Invoice = pr.Invoice.clone()
		st.Payment = &pr
	}
	return st
}

// Execute dispatches op. live and now are used only by commands that need them.
func (c *Controller) Execute(op Op, live cart.State, now time.Time) (Phase, error) {
	switch op {
	case OpOpenInvoice:
		return c.OpenInvoice(live, now)
	case OpCancelInvoice:
		return c.CancelInvoice()
	case OpOpenPaymentRequest:
		return c.OpenPaymentRequest(now)
	case OpConfirmPayment:
		return c.ConfirmPayment()
	case OpBackToInvoice:
		return c.BackToInvoice()
	default:
		return c.phase, newInvalidTransitionError(op, c.phase)
	}
}

// OpenInvoice moves Idle -> InvoiceOpen, snapshotting live. Rejected with
// EMPTY_CART unless the total is positive and some line has quantity > 0.
func (c *Controller) OpenInvoice(live cart.State, now time.Time) (Phase, error) {
	if c.phase != Idle {
		return c.phase, newInvalidTransitionError(OpOpenInvoice, c.phase)
	}
	if !live.Total().IsPositive() || !live.HasActive() {
		return c.phase, newEmptyCartError(OpOpenInvoice, c.phase)
	}

	inv := newInvoice(live, now)
	c.invoice = &inv
	c.phase = InvoiceOpen
	return c.phase, nil
}

// CancelInvoice moves InvoiceOpen -> Idle, discarding the invoice.
func (c *Controller) CancelInvoice() (Phase, error) {
	if c.phase != InvoiceOpen {
		return c.phase, newInvalidTransitionError(OpCancelInvoice, c.phase)
	}
	c.reset()
	return c.phase, nil
}

// OpenPaymentRequest moves InvoiceOpen -> PaymentPending and generates the
// request. While already PaymentPending it returns without regenerating.
func (c *Controller) OpenPaymentRequest(now time.Time) (Phase, error) {
	switch c.phase {
	case PaymentPending:
		return c.phase, nil
	case InvoiceOpen:
	default:
		return c.phase, newInvalidTransitionError(OpOpenPaymentRequest, c.phase)
	}

	c.payment = &PaymentRequest{
		InvoiceID:   PaymentIDPrefix + c.ids.Generate(),
		Invoice:     c.invoice.clone(),
		GeneratedAt: now,
	}
	c.phase = PaymentPending
	return c.phase, nil
}

// BackToInvoice moves PaymentPending -> InvoiceOpen. The payment request is
// discarded; the invoice is kept.
func (c *Controller) BackToInvoice() (Phase, error) {
	if c.phase != PaymentPending {
		return c.phase, newInvalidTransitionError(OpBackToInvoice, c.phase)
	}
	c.payment = nil
	c.phase = InvoiceOpen
	return c.phase, nil
}

// ConfirmPayment moves PaymentPending -> Paid. Confirming again while Paid
// is a no-op success.
func (c *Controller) ConfirmPayment() (Phase, error) {
	switch c.phase {
	case Paid:
		return c.phase, nil
	case PaymentPending:
		c.phase = Paid
		return c.phase, nil
	default:
		return c.phase, newInvalidTransitionError(OpConfirmPayment, c.phase)
	}
}

// Observe is called with every new live cart. While Paid, an empty item set
// ends the cycle: the controller returns to Idle and reports true.
func (c *Controller) Observe(live cart.State) bool {
	if c.phase != Paid || !live.IsEmpty() {
		return false
	}
	c.reset()
	return true
}

func (c *Controller) reset() {
	c.phase = Idle
	c.invoice = nil
	c.payment = nil
}
