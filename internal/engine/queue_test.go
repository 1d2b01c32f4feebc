package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/connection"
)

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(UpdateEvent([]byte(`{"products":[]}`)))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, EventTypeUpdate, got.Type)
	assert.Equal(t, `{"products":[]}`, string(got.Payload))
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	q.Enqueue(UpdateEvent([]byte("a")))
	q.Enqueue(SignalEvent(connection.Signal{Kind: connection.SignalConnect}))
	q.Enqueue(CommandEvent(checkout.OpOpenInvoice))

	e1, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, EventTypeUpdate, e1.Type)

	e2, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, EventTypeSignal, e2.Type)
	assert.Equal(t, connection.SignalConnect, e2.Signal.Kind)

	e3, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, EventTypeCommand, e3.Type)
	assert.Equal(t, checkout.OpOpenInvoice, e3.Command.Op)
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(UpdateEvent(nil))
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("wait did not fire after enqueue")
	}
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(UpdateEvent(nil))

	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(UpdateEvent(nil)), "enqueue after close should fail")

	// Remaining events can still be drained.
	_, ok := q.TryDequeue()
	assert.True(t, ok)

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const numGoroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				q.Enqueue(UpdateEvent(nil))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*perGoroutine, q.Len())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "update", EventTypeUpdate.String())
	assert.Equal(t, "signal", EventTypeSignal.String())
	assert.Equal(t, "command", EventTypeCommand.String())
	assert.Equal(t, "unknown", EventType(0).String())
}

func TestCommand_RespondOnce(t *testing.T) {
	cmd := &Command{Op: checkout.OpConfirmPayment, reply: make(chan CommandResult, 1)}
	cmd.respond(CommandResult{Phase: checkout.Paid})
	cmd.respond(CommandResult{Phase: checkout.Idle}) // dropped

	res := <-cmd.reply
	assert.Equal(t, checkout.Paid, res.Phase)

	var nilCmd *Command
	assert.NotPanics(t, func() { nilCmd.respond(CommandResult{}) })
}
