package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Submit once the session loop has shut down.
var ErrStopped = errors.New("engine: session stopped")

// HandlerPanicError wraps a panic recovered while handling one event.
type HandlerPanicError struct {
	Type  EventType
	Value interface{}
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("panic while handling %s event: %v", e.Type, e.Value)
}

// IsHandlerPanic reports whether err came from a recovered panic.
func IsHandlerPanic(err error) bool {
	var pe *HandlerPanicError
	return errors.As(err, &pe)
}
