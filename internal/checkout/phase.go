// Package checkout implements the checkout flow controller: a state machine
// that snapshots the live cart into an immutable Invoice, generates one
// PaymentRequest per payment screen, and resets once paid items leave the cart.
package checkout

import (
	"fmt"
	"strings"
)

// Phase is the checkout phase. Exactly one Invoice/PaymentRequest pair is
// live at a time.
type Phase int

const (
	Idle Phase = iota
	InvoiceOpen
	PaymentPending
	Paid
)

// Phases lists every phase in declaration order.
var Phases = []Phase{Idle, InvoiceOpen, PaymentPending, Paid}

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case InvoiceOpen:
		return "InvoiceOpen"
	case PaymentPending:
		return "PaymentPending"
	case Paid:
		return "Paid"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON and YAML.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if strings.EqualFold(p.String(), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return Idle, fmt.Errorf("unknown checkout phase %q", s)
}

// PhaseNames returns the String form of every phase.
func PhaseNames() []string {
	names := make([]string, len(Phases))
	for i, p := range Phases {
		names[i] = p.String()
	}
	return names
}

// Op names a user command.
type Op string

const (
	OpOpenInvoice        Op = "open_invoice"
	OpCancelInvoice      Op = "cancel_invoice"
	OpOpenPaymentRequest Op = "open_payment_request"
	OpConfirmPayment     Op = "confirm_payment"
	OpBackToInvoice      Op = "back_to_invoice"
)

// Ops lists every command.
var Ops = []Op{OpOpenInvoice, OpCancelInvoice, OpOpenPaymentRequest, OpConfirmPayment, OpBackToInvoice}

// ParseOp accepts the command names above.
func ParseOp(s string) (Op, error) {
	op := Op(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Ops {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown checkout command %q", s)
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
