package connection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (s *fakeSender) SendFrame(_ context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestGate_DropsUnlessConnected(t *testing.T) {
	sender := &fakeSender{}
	g := NewGate(sender, WithGateLogger(logger.Discard()))
	ctx := context.Background()

	for _, s := range []Status{Connecting, Error, Disconnected} {
		g.SetStatus(s)
		assert.False(t, g.Send(ctx, Frame{Image: "data:image/jpeg;base64,AA=="}), s.String())
	}
	assert.Equal(t, 0, sender.count(), "nothing reaches the transport")
	assert.Equal(t, uint64(3), g.Stats().DroppedNotConnected)

	g.SetStatus(Connected)
	assert.True(t, g.Send(ctx, Frame{Image: "x"}))
	assert.Equal(t, 1, sender.count())
	assert.Equal(t, uint64(1), g.Stats().Sent)
}

func TestGate_StartsClosed(t *testing.T) {
	g := NewGate(&fakeSender{})
	assert.Equal(t, Connecting, g.Status())
	assert.False(t, g.Send(context.Background(), Frame{}))
}

func TestGate_SendErrorCountedNotReturned(t *testing.T) {
	sender := &fakeSender{err: errors.New("broken pipe")}
	g := NewGate(sender, WithGateLogger(logger.Discard()))
	g.SetStatus(Connected)

	assert.False(t, g.Send(context.Background(), Frame{Image: "x"}))
	assert.Equal(t, uint64(1), g.Stats().DroppedSendError)
	assert.Equal(t, Connected, g.Status(), "send failures leave the status to the transport")
}

func TestGate_NilSender(t *testing.T) {
	g := NewGate(nil)
	g.SetStatus(Connected)
	assert.False(t, g.Send(context.Background(), Frame{}))
	assert.Equal(t, uint64(1), g.Stats().Dropped())
}

func TestGate_Throttled(t *testing.T) {
	sender := &fakeSender{}
	g := NewGate(sender, WithMaxRate(1))
	g.SetStatus(Connected)

	ctx := context.Background()
	require.True(t, g.Send(ctx, Frame{Image: "1"}))
	assert.False(t, g.Send(ctx, Frame{Image: "2"}), "burst of one per second")

	st := g.Stats()
	assert.Equal(t, uint64(1), st.Sent)
	assert.Equal(t, uint64(1), st.DroppedThrottled)
}

func TestGate_Metrics(t *testing.T) {
	m := metrics.New()
	g := NewGate(&fakeSender{}, WithGateMetrics(m))
	ctx := context.Background()

	g.Send(ctx, Frame{})
	g.SetStatus(Connected)
	g.Send(ctx, Frame{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues(DropDisconnected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent))
}

func TestGate_ConcurrentStatusAndSend(t *testing.T) {
	sender := &fakeSender{}
	g := NewGate(sender)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				g.SetStatus(Connected)
			} else {
				g.SetStatus(Disconnected)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			g.Send(ctx, Frame{})
		}
	}()
	wg.Wait()

	st := g.Stats()
	assert.Equal(t, uint64(500), st.Sent+st.Dropped())
	assert.Equal(t, int(st.Sent), sender.count())
}
