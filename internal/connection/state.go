// Package connection tracks the transport lifecycle as a small state machine
// and gates outbound frames on it.
package connection

import (
	"fmt"
	"strings"
	"time"
)

// Status is the coarse connection status.
type Status int32

const (
	Connecting Status = iota
	Connected
	Error
	Disconnected
)

// Statuses lists every status, in declaration order.
var Statuses = []Status{Connecting, Connected, Error, Disconnected}

func (s Status) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Error:
		return "Error"
	case Disconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// StatusNames returns the String form of every status.
func StatusNames() []string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = s.String()
	}
	return names
}

// State is the tracker's value: a status plus the message carried by Error
// (or the reason carried by Disconnected).
type State struct {
	Status  Status
	Message string
	Attempt int
	Since   time.Time
}

// Label is the human-readable form shown to a display client.
func (s State) Label() string {
	switch s.Status {
	case Connecting:
		if s.Attempt > 1 {
			return fmt.Sprintf("Reconnecting (attempt %d)...", s.Attempt)
		}
		return "Connecting..."
	case Connected:
		return "Connected"
	case Error:
		return "Connection error: " + s.Message
	case Disconnected:
		if s.Message != "" {
			return "Disconnected: " + s.Message
		}
		return "Disconnected"
	}
	return s.Status.String()
}

// SignalKind names a transport lifecycle signal.
type SignalKind string

const (
	SignalConnecting   SignalKind = "connecting"
	SignalConnect      SignalKind = "connect"
	SignalConnectError SignalKind = "connect_error"
	SignalDisconnect   SignalKind = "disconnect"
	SignalReconnect    SignalKind = "reconnect"
	SignalError        SignalKind = "error"
)

var signalKinds = []SignalKind{
	SignalConnecting, SignalConnect, SignalConnectError,
	SignalDisconnect, SignalReconnect, SignalError,
}

// ParseSignalKind accepts the wire names above, case-insensitively.
func ParseSignalKind(s string) (SignalKind, error) {
	k := SignalKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range signalKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown connection signal %q", s)
}

// Signal is one lifecycle event reported by the transport.
type Signal struct {
	Kind    SignalKind
	Message string // connect_error, error, disconnect reason
	Attempt int    // connecting, reconnect
}

func (s Signal) String() string {
	switch {
	case s.Message != "":
		return fmt.Sprintf("%s(%s)", s.Kind, s.Message)
	case s.Attempt > 0:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Attempt)
	default:
		return string(s.Kind)
	}
}
