// Package capture produces outbound frames on a fixed period and offers them
// to the connection gate.
package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/logger"
)

// DefaultInterval matches a 20 fps camera.
const DefaultInterval = 50 * time.Millisecond

// State is the producer lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sink accepts frames without reporting errors. connection.Gate is the sink
// in production.
type Sink interface {
	Send(ctx context.Context, f connection.Frame) bool
}

// Stats counts producer activity.
type Stats struct {
	Ticks      uint64 `json:"ticks"`
	Accepted   uint64 `json:"accepted"`
	Rejected   uint64 `json:"rejected"`
	ReadErrors uint64 `json:"read_errors"`
}

// Producer reads one frame per tick and offers it to the sink. Frames the
// sink rejects are not retried.
type Producer struct {
	source   Source
	sink     Sink
	interval time.Duration
	log      *logger.Entry

	state      atomic.Int32
	ticks      atomic.Uint64
	accepted   atomic.Uint64
	rejected   atomic.Uint64
	readErrors atomic.Uint64
}

type Option func(*Producer)

// WithInterval sets the tick period. Zero or less keeps DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(l *logger.Log) Option {
	return func(p *Producer) { p.log = l.WithComponent("capture") }
}

func NewProducer(src Source, sink Sink, opts ...Option) *Producer {
	p := &Producer{
		source:   src,
		sink:     sink,
		interval: DefaultInterval,
		log:      logger.GetLogger().WithComponent("capture"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run opens the source and ticks until ctx is cancelled, then closes the
// source. An open failure leaves the producer Failed and returns an error
// wrapping ErrSourceUnavailable.
func (p *Producer) Run(ctx context.Context) error {
	if err := p.source.Open(ctx); err != nil {
		p.state.Store(int32(StateFailed))
		p.log.WithError(err).Error("frame source unavailable, producer stopped")
		return fmt.Errorf("open frame source: %w", err)
	}
	defer func() {
		if err := p.source.Close(); err != nil {
			p.log.WithError(err).Warn("close frame source")
		}
	}()

	p.state.Store(int32(StateRunning))
	p.log.WithField("interval", p.interval.String()).Info("frame producer started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.state.Store(int32(StateStopped))
			p.log.Info("frame producer stopped")
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick reads and offers one frame. Run calls it on every tick.
func (p *Producer) Tick(ctx context.Context) {
	p.ticks.Add(1)
	f, err := p.source.Next(ctx)
	if err != nil {
		p.readErrors.Add(1)
		p.log.WithError(err).Debug("frame read failed")
		return
	}
	if p.sink.Send(ctx, f) {
		p.accepted.Add(1)
	} else {
		p.rejected.Add(1)
	}
}

func (p *Producer) State() State {
	return State(p.state.Load())
}

func (p *Producer) Stats() Stats {
	return Stats{
		Ticks:      p.ticks.Load(),
		Accepted:   p.accepted.Load(),
		Rejected:   p.rejected.Load(),
		ReadErrors: p.readErrors.Load(),
	}
}
