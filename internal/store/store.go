package store

import (
	"sync"

	"frame-relay-go/internal/types"
)

// Store holds the most recently encoded frame. The frame and its timestamp are
// replaced as one value under a single lock, so readers never observe a
// partially written frame. There is no history.
type Store struct {
	mu    sync.RWMutex
	frame types.EncodedFrame
	ok    bool
}

func New() *Store {
	return &Store{}
}

// Write replaces the current frame. The caller must not modify frame.Data
// afterwards.
func (s *Store) Write(frame types.EncodedFrame) {
	s.mu.Lock()
	s.frame = frame
	s.ok = true
	s.mu.Unlock()
}

// Read returns the current frame, or false if nothing has been written yet.
func (s *Store) Read() (types.EncodedFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.ok
}
