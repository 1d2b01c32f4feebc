package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/connection"
)

var epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func TestManualClock_Frozen(t *testing.T) {
	clock := NewManualClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestManualClock_AdvanceAndSet(t *testing.T) {
	clock := NewManualClock(epoch)

	got := clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, epoch.Add(1500*time.Millisecond), got)
	assert.Equal(t, got, clock.Now())

	clock.Set(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock(epoch)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(numGoroutines*time.Millisecond), clock.Now())
}

func TestSequenceIDGenerator(t *testing.T) {
	gen := NewSequenceIDGenerator("pay")
	assert.Equal(t, "pay-0001", gen.Generate())
	assert.Equal(t, "pay-0002", gen.Generate())

	assert.Equal(t, "test-0001", NewSequenceIDGenerator("").Generate())
}

func TestRecordingSender(t *testing.T) {
	var s RecordingSender
	ctx := context.Background()

	require.NoError(t, s.SendFrame(ctx, connection.Frame{Image: "a"}))
	require.NoError(t, s.SendFrame(ctx, connection.Frame{Image: "b"}))
	assert.Equal(t, []connection.Frame{{Image: "a"}, {Image: "b"}}, s.Frames())

	s.Err = errors.New("write failed")
	assert.EqualError(t, s.SendFrame(ctx, connection.Frame{Image: "c"}), "write failed")
	assert.Equal(t, 2, s.Len())
}
