package checkout

import (
	"errors"
	"fmt"
)

// RejectionCode categorizes a refused command.
type RejectionCode string

const (
	// CodeEmptyCart: an invoice needs a positive total and at least one
	// positive-quantity line.
	CodeEmptyCart RejectionCode = "EMPTY_CART"

	// CodeInvalidTransition: the command is not allowed in the current phase.
	CodeInvalidTransition RejectionCode = "INVALID_TRANSITION"
)

// TransitionError is returned for a rejected command. No state is mutated
// when it is returned.
type TransitionError struct {
	Code    RejectionCode
	Op      Op
	From    Phase
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s (op=%s, phase=%s)", e.Code, e.Message, e.Op, e.From)
}

func newEmptyCartError(op Op, from Phase) *TransitionError {
	return &TransitionError{
		Code:    CodeEmptyCart,
		Op:      op,
		From:    from,
		Message: "cart has no billable items",
	}
}

func newInvalidTransitionError(op Op, from Phase) *TransitionError {
	return &TransitionError{
		Code:    CodeInvalidTransition,
		Op:      op,
		From:    from,
		Message: fmt.Sprintf("%s is not allowed while %s", op, from),
	}
}

// RejectionCodeOf returns the code of a wrapped TransitionError, or "".
func RejectionCodeOf(err error) RejectionCode {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsEmptyCart reports whether err rejects an invoice on an empty cart.
func IsEmptyCart(err error) bool {
	return RejectionCodeOf(err) == CodeEmptyCart
}

// IsInvalidTransition reports whether err rejects a command for its phase.
func IsInvalidTransition(err error) bool {
	return RejectionCodeOf(err) == CodeInvalidTransition
}
