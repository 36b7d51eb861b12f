// Package history keeps a bounded, time and count windowed buffer of host
// snapshots shared by the background sampler and request handlers.
package history

import (
	"sync"
	"time"

	"host-health-agent/internal/model"
)

const (
	DefaultMaxEntries = 50
	DefaultMaxAge     = 600 * time.Second
)

type Store struct {
	mu         sync.Mutex
	entries    []model.Snapshot
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for age based eviction.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(maxEntries int, maxAge time.Duration, opts ...Option) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	s := &Store{
		entries:    make([]model.Snapshot, 0, maxEntries+1),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds snap at the end, then drops entries older than maxAge and
// finally trims the oldest entries down to maxEntries.
func (s *Store) Append(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(snap)
}

// AppendRecent appends snap and returns a copy of the buffer taken under the
// same lock, so a concurrent Append cannot land between the two.
func (s *Store) AppendRecent(snap model.Snapshot) []model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(snap)
	return s.copyLocked()
}

func (s *Store) appendLocked(snap model.Snapshot) {
	s.entries = append(s.entries, snap)

	// The age filter runs over the whole buffer: a wall clock stepped
	// backwards can leave stale entries in the middle.
	now := s.now()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if now.Sub(e.Timestamp) <= s.maxAge {
			kept = append(kept, e)
		}
	}
	clear(s.entries[len(kept):])
	s.entries = kept

	if over := len(s.entries) - s.maxEntries; over > 0 {
		s.entries = append(s.entries[:0], s.entries[over:]...)
	}
}

func (s *Store) copyLocked() []model.Snapshot {
	out := make([]model.Snapshot, len(s.entries))
	copy(out, s.entries)
	return out
}

// Recent returns a copy of the buffer, oldest first.
func (s *Store) Recent() []model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) MaxEntries() int { return s.maxEntries }

func (s *Store) MaxAge() time.Duration { return s.maxAge }
