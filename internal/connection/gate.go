package connection

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
)

// Frame is one outbound image. Image is opaque to this package.
type Frame struct {
	Image string `json:"image"`
}

// Sender delivers a frame to the backend.
type Sender interface {
	SendFrame(ctx context.Context, f Frame) error
}

// Drop reasons, as recorded in metrics and stats.
const (
	DropDisconnected = "disconnected"
	DropThrottled    = "throttled"
	DropSendError    = "send_error"
	DropNoSender     = "no_sender"
)

// GateStats is a point-in-time copy of the gate counters.
type GateStats struct {
	Sent                uint64 `json:"sent"`
	DroppedNotConnected uint64 `json:"dropped_not_connected"`
	DroppedThrottled    uint64 `json:"dropped_throttled"`
	DroppedSendError    uint64 `json:"dropped_send_error"`
}

// Dropped sums every drop counter.
func (s GateStats) Dropped() uint64 {
	return s.DroppedNotConnected + s.DroppedThrottled + s.DroppedSendError
}

// Gate forwards frames to a Sender only while the connection is Connected.
// Anything else is dropped and counted; Send never fails.
//
// Send may be called from the frame producer goroutine while SetStatus is
// called from the session loop.
type Gate struct {
	sender  Sender
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *logger.Entry

	status atomic.Int32

	sent        atomic.Uint64
	notConn     atomic.Uint64
	throttled   atomic.Uint64
	sendErrored atomic.Uint64
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithMaxRate caps forwarded frames per second. Zero or less disables it.
func WithMaxRate(fps float64) GateOption {
	return func(g *Gate) {
		if fps > 0 {
			burst := int(fps)
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(fps), burst)
		}
	}
}

// WithGateMetrics records sends and drops.
func WithGateMetrics(m *metrics.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithGateLogger overrides the logger.
func WithGateLogger(l *logger.Log) GateOption {
	return func(g *Gate) { g.log = l.WithComponent("gate") }
}

// NewGate creates a gate that starts closed (Connecting).
func NewGate(sender Sender, opts ...GateOption) *Gate {
	g := &Gate{
		sender: sender,
		log:    logger.GetLogger().WithComponent("gate"),
	}
	g.status.Store(int32(Connecting))
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetStatus publishes the current connection status to the gate.
func (g *Gate) SetStatus(s Status) {
	g.status.Store(int32(s))
}

// Status returns the last published status.
func (g *Gate) Status() Status {
	return Status(g.status.Load())
}

// Send forwards f if the connection is up and reports whether it did.
func (g *Gate) Send(ctx context.Context, f Frame) bool {
	if g.Status() != Connected {
		g.notConn.Add(1)
		g.metrics.FrameDropped(DropDisconnected)
		return false
	}
	if g.sender == nil {
		g.notConn.Add(1)
		g.metrics.FrameDropped(DropNoSender)
		return false
	}
	if g.limiter != nil && !g.limiter.Allow() {
		g.throttled.Add(1)
		g.metrics.FrameDropped(DropThrottled)
		return false
	}
	if err := g.sender.SendFrame(ctx, f); err != nil {
		g.sendErrored.Add(1)
		g.metrics.FrameDropped(DropSendError)
		g.log.WithError(err).Debug("frame send failed")
		return false
	}
	g.sent.Add(1)
	g.metrics.FrameSent()
	return true
}

// Stats returns the current counters.
func (g *Gate) Stats() GateStats {
	return GateStats{
		Sent:                g.sent.Load(),
		DroppedNotConnected: g.notConn.Load(),
		DroppedThrottled:    g.throttled.Load(),
		DroppedSendError:    g.sendErrored.Load(),
	}
}
