package testutil

import (
	"context"
	"sync"

	"github.com/roach88/cartsync/internal/connection"
)

// RecordingSender is a connection.Sender that keeps every frame it is given.
// Err, when set, is returned from every SendFrame instead.
type RecordingSender struct {
	mu     sync.Mutex
	frames []connection.Frame
	Err    error
}

func (s *RecordingSender) SendFrame(_ context.Context, f connection.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.frames = append(s.frames, f)
	return nil
}

// Frames returns a copy of the recorded frames.
func (s *RecordingSender) Frames() []connection.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]connection.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Len returns the number of recorded frames.
func (s *RecordingSender) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
