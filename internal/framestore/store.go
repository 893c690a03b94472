// Package framestore holds the single current state frame.
//
// The store reconciles two sources: the push feed and the one-shot pull
// snapshot. Pushed frames always win; the pull result is only accepted
// while no push has ever arrived, so a slow snapshot response can never
// clobber live data. Every accepted frame fully replaces the previous
// one (last-write-wins, arrival order).
package framestore

import (
	"sync"

	"github.com/lumenfield/swarmview/internal/frame"
)

// Source identifies where a frame came from.
type Source int

const (
	// SourcePull is the startup/fallback snapshot fetch.
	SourcePull Source = iota
	// SourcePush is the live feed.
	SourcePush
)

// Store owns the current merged frame. One Store exists per viewer
// session; renderers hold a reference and read at the top of each tick.
type Store struct {
	mu       sync.RWMutex
	current  *frame.Frame
	gen      uint64
	pushSeen bool

	// changed is a latest-only signal: publishes never block, a missed
	// signal is fine because consumers re-read the whole frame anyway.
	changed chan struct{}
}

// New creates an empty store. Current returns nil until the first frame
// arrives; callers treat that as "not yet ready", not an error.
func New() *Store {
	return &Store{changed: make(chan struct{}, 1)}
}

// Publish offers a frame from the given source. It reports whether the
// frame was accepted. Pull frames are rejected once any push frame has
// been seen.
func (s *Store) Publish(f *frame.Frame, src Source) bool {
	if f == nil {
		return false
	}

	s.mu.Lock()
	if src == SourcePull && s.pushSeen {
		s.mu.Unlock()
		return false
	}
	if src == SourcePush {
		s.pushSeen = true
	}
	s.current = f
	s.gen++
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default: // already signaled
	}
	return true
}

// Current returns the latest frame and its generation. The frame is
// shared and must be treated as immutable by callers.
func (s *Store) Current() (*frame.Frame, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.gen
}

// Changed returns the notification channel. The channel carries at most
// one pending signal; receivers drain it and call Current.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}
