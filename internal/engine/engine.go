package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
	"github.com/roach88/cartsync/internal/reconcile"
	"github.com/roach88/cartsync/internal/snapshot"
)

const tracerName = "github.com/roach88/cartsync/internal/engine"

// Observer is told about every handled event that changed the view.
// Notify runs on the session goroutine and must not block for long.
type Observer interface {
	Notify(ctx context.Context, n Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, n Notification)

func (f ObserverFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Notification carries the new view and which parts of it changed.
type Notification struct {
	View              View
	CartChanged       bool
	ConnectionChanged bool
	CheckoutChanged   bool
	PreviousPhase     checkout.Phase
}

// Outcome reports what Handle did with one event.
type Outcome struct {
	Seq  int64
	Type EventType
	At   time.Time

	// Update events.
	Snapshot *SnapshotReport

	// Signal events.
	Connection        connection.State
	ConnectionChanged bool

	// Command events.
	Op checkout.Op

	Phase        checkout.Phase
	PhaseChanged bool
	AutoReset    bool

	// Err is a command rejection or a handler failure.
	Err error
}

// SnapshotReport summarizes one applied update.
type SnapshotReport struct {
	Malformed         bool
	Dropped           int
	Refreshed         []string
	Retained          []string
	Expired           []string
	DeclaredTotalUsed bool
}

// Engine is the single-writer cart session.
//
// Thread-safety model:
//   - Enqueue, EnqueueUpdate, EnqueueSignal, Submit, View: any goroutine
//   - Run: exactly one goroutine
//   - Handle: only the goroutine that would otherwise call Run
type Engine struct {
	clock      Clock
	seq        *Sequence
	queue      *eventQueue
	normalizer *snapshot.Normalizer
	reconciler *reconcile.Reconciler
	tracker    *connection.Tracker
	checkout   *checkout.Controller
	gate       *connection.Gate
	observers  []Observer

	log     *logger.Entry
	metrics *metrics.Metrics
	tracer  trace.Tracer

	ids    checkout.IDGenerator
	window time.Duration

	view atomic.Pointer[View]
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the payment id source.
func WithIDGenerator(g checkout.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithRetentionWindow overrides reconcile.DefaultRetentionWindow.
func WithRetentionWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.window = d
	}
}

// WithGate attaches the outbound frame gate. It receives the connection
// status after every signal.
func WithGate(g *connection.Gate) Option {
	return func(e *Engine) {
		e.gate = g
	}
}

// WithObserver appends an observer. Observers run in registration order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(l *logger.Log) Option {
	return func(e *Engine) {
		e.log = l.WithComponent("engine")
	}
}

// New creates a session starting with an empty cart, a Connecting
// connection and an Idle checkout.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:      SystemClock{},
		seq:        NewSequence(),
		queue:      newEventQueue(),
		normalizer: snapshot.NewNormalizer(),
		log:        logger.Discard().WithComponent("engine"),
		tracer:     otel.Tracer(tracerName),
		window:     reconcile.DefaultRetentionWindow,
	}
	for _, opt := range opts {
		opt(e)
	}

	now := e.clock.Now()
	e.reconciler = reconcile.New(reconcile.WithRetentionWindow(e.window))
	e.tracker = connection.NewTracker(now)
	e.checkout = checkout.NewController(e.ids)
	if e.gate != nil {
		e.gate.SetStatus(e.tracker.Current().Status)
	}
	e.metrics.SetConnection(e.tracker.Current().Status.String(), connection.StatusNames())
	e.metrics.SetPhase(checkout.Idle.String(), checkout.PhaseNames())

	v := e.buildView(0, now)
	e.view.Store(&v)
	return e
}

// Enqueue submits an event for the Run loop. Returns false once stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// EnqueueUpdate submits one raw update payload.
func (e *Engine) EnqueueUpdate(payload []byte) bool {
	return e.Enqueue(UpdateEvent(payload))
}

// EnqueueSignal submits one connection lifecycle signal.
func (e *Engine) EnqueueSignal(sig connection.Signal) bool {
	return e.Enqueue(SignalEvent(sig))
}

// Submit enqueues a checkout command and waits for its result.
//
// Commands are ordered with updates: an OpenInvoice submitted after an update
// was enqueued snapshots the cart that update produced.
func (e *Engine) Submit(ctx context.Context, op checkout.Op) (checkout.Phase, error) {
	res, err := e.SubmitCommand(ctx, op)
	return res.Phase, err
}

// SubmitCommand is Submit that also returns the checkout view published by
// the command's own event. View may already reflect later events.
func (e *Engine) SubmitCommand(ctx context.Context, op checkout.Op) (CommandResult, error) {
	cmd := &Command{Op: op, reply: make(chan CommandResult, 1)}
	if !e.Enqueue(Event{Type: EventTypeCommand, Command: cmd}) {
		return e.currentResult(ErrStopped), ErrStopped
	}

	select {
	case <-ctx.Done():
		return e.currentResult(ctx.Err()), ctx.Err()
	case res := <-cmd.reply:
		return res, res.Err
	}
}

func (e *Engine) currentResult(err error) CommandResult {
	v := e.View()
	return CommandResult{Phase: v.Checkout.Phase, Checkout: v.Checkout, Err: err}
}

// View returns the last published view.
func (e *Engine) View() View {
	return *e.view.Load()
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop is called.
//
// A failed event is logged and the loop continues with the next one.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("session starting")
	defer e.drain()

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			e.Handle(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.log.Info("session stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed with the queue, so this fires
			// immediately once stopped.
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.log.Info("session stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once the queue is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

// drain answers commands left in a closed queue so Submit callers return.
func (e *Engine) drain() {
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		if ev.Type == EventTypeCommand {
			ev.Command.respond(e.currentResult(ErrStopped))
		}
	}
}

// Handle processes one event to completion and publishes the resulting view.
//
// Run calls Handle for every dequeued event. Replay tools call it directly
// to step a session on a manual clock without a goroutine.
func (e *Engine) Handle(ctx context.Context, ev Event) (out Outcome) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "session."+ev.Type.String(),
		trace.WithAttributes(attribute.String("event.type", ev.Type.String())))
	defer span.End()

	prevPhase := e.checkout.Phase()
	out = Outcome{Seq: e.seq.Next(), Type: ev.Type, At: e.clock.Now()}

	defer func() {
		if r := recover(); r != nil {
			out.Err = &HandlerPanicError{Type: ev.Type, Value: r}
			e.metrics.EventPanicked()
			e.log.WithFields(logger.Fields{
				"seq":   out.Seq,
				"event": ev.Type.String(),
				"panic": fmt.Sprint(r),
			}).Error("event handler panicked")
			if ev.Type == EventTypeCommand {
				ev.Command.respond(e.currentResult(out.Err))
			}
			span.SetStatus(codes.Error, out.Err.Error())
		}
		e.metrics.ObserveEvent(ev.Type.String(), time.Since(start))
	}()

	switch ev.Type {
	case EventTypeUpdate:
		e.handleUpdate(ev.Payload, &out)
	case EventTypeSignal:
		e.handleSignal(ev.Signal, &out)
	case EventTypeCommand:
		e.handleCommand(ev.Command, &out)
	default:
		out.Err = fmt.Errorf("unknown event type: %d", ev.Type)
		e.log.WithField("seq", out.Seq).WithError(out.Err).Warn("event ignored")
	}

	out.Phase = e.checkout.Phase()
	out.PhaseChanged = out.Phase != prevPhase
	if out.PhaseChanged {
		e.metrics.SetPhase(out.Phase.String(), checkout.PhaseNames())
		e.log.WithFields(logger.Fields{
			"seq":  out.Seq,
			"from": prevPhase.String(),
			"to":   out.Phase.String(),
		}).Info("checkout phase changed")
	}

	if out.Err != nil {
		span.RecordError(out.Err)
	}
	span.SetAttributes(
		attribute.Int64("session.seq", out.Seq),
		attribute.String("checkout.phase", out.Phase.String()),
	)

	v := e.publish(ctx, out, prevPhase)

	if ev.Type == EventTypeCommand {
		ev.Command.respond(CommandResult{Phase: out.Phase, Checkout: v.Checkout, Err: out.Err})
	}
	return out
}

func (e *Engine) handleUpdate(payload []byte, out *Outcome) {
	snap := e.normalizer.Normalize(payload, out.At)
	e.metrics.SnapshotNormalized(snap.Dropped, snap.Malformed)
	if snap.Malformed {
		e.log.WithFields(logger.Fields{
			"seq":   out.Seq,
			"bytes": len(payload),
		}).Warn("malformed update treated as empty snapshot")
	} else if snap.Dropped > 0 {
		e.log.WithFields(logger.Fields{
			"seq":     out.Seq,
			"dropped": snap.Dropped,
		}).Warn("invalid product entries dropped")
	}

	state, res := e.reconciler.Apply(snap)
	out.Snapshot = &SnapshotReport{
		Malformed:         snap.Malformed,
		Dropped:           snap.Dropped,
		Refreshed:         res.Refreshed,
		Retained:          res.Retained,
		Expired:           res.Expired,
		DeclaredTotalUsed: res.DeclaredTotalUsed,
	}
	for _, name := range res.Expired {
		e.log.WithFields(logger.Fields{
			"seq":  out.Seq,
			"item": name,
		}).Debug("retained item aged out")
	}

	total, _ := state.Total().Float64()
	e.metrics.CartChanged(total, len(res.Refreshed), len(res.Retained), len(res.Expired))

	if e.checkout.Observe(state) {
		out.AutoReset = true
		e.log.WithField("seq", out.Seq).Info("cart emptied after payment, checkout reset")
	}
}

func (e *Engine) handleSignal(sig connection.Signal, out *Outcome) {
	st, changed := e.tracker.Apply(sig, out.At)
	out.Connection = st
	out.ConnectionChanged = changed
	if e.gate != nil {
		e.gate.SetStatus(st.Status)
	}
	if !changed {
		e.log.WithFields(logger.Fields{
			"seq":    out.Seq,
			"signal": sig.String(),
		}).Debug("signal did not change connection state")
		return
	}

	e.metrics.SetConnection(st.Status.String(), connection.StatusNames())
	entry := e.log.WithFields(logger.Fields{
		"seq":    out.Seq,
		"signal": sig.String(),
		"status": st.Status.String(),
	})
	if st.Status == connection.Error {
		entry.WithField("message", st.Message).Warn("connection error")
		return
	}
	entry.Info("connection state changed")
}

func (e *Engine) handleCommand(cmd *Command, out *Outcome) {
	if cmd == nil {
		out.Err = errors.New("command event missing command")
		return
	}
	out.Op = cmd.Op

	phase, err := e.checkout.Execute(cmd.Op, e.reconciler.State(), out.At)
	out.Err = err

	result := "ok"
	if err != nil {
		result = "error"
		if code := checkout.RejectionCodeOf(err); code != "" {
			result = string(code)
		}
		e.log.WithFields(logger.Fields{
			"seq":   out.Seq,
			"op":    string(cmd.Op),
			"phase": phase.String(),
		}).WithError(err).Info("checkout command rejected")
	}
	e.metrics.CheckoutCommand(string(cmd.Op), result)
}

func (e *Engine) publish(ctx context.Context, out Outcome, prevPhase checkout.Phase) View {
	v := e.buildView(out.Seq, out.At)
	e.view.Store(&v)

	n := Notification{
		View:              v,
		CartChanged:       out.Type == EventTypeUpdate,
		ConnectionChanged: out.ConnectionChanged,
		CheckoutChanged:   out.PhaseChanged,
		PreviousPhase:     prevPhase,
	}
	if !n.CartChanged && !n.ConnectionChanged && !n.CheckoutChanged {
		return v
	}
	for _, o := range e.observers {
		o.Notify(ctx, n)
	}
	return v
}

func (e *Engine) buildView(seq int64, at time.Time) View {
	v := View{
		Seq:        seq,
		UpdatedAt:  at,
		Cart:       NewCartView(e.reconciler.State()),
		Connection: NewConnectionView(e.tracker.Current()),
		Checkout:   NewCheckoutView(e.checkout.Status()),
	}
	if e.gate != nil {
		stats := e.gate.Stats()
		v.Frames = &stats
	}
	return v
}
