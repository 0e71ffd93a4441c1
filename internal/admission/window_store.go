package admission

import (
	"context"
	"sync"
	"time"
)

// WindowStore tracks request timestamps per (client, action) key inside a
// trailing window. Implementations must apply Take atomically per key so two
// concurrent requests cannot both squeeze through the last slot.
type WindowStore interface {
	// Take purges entries older than window, then either records now and
	// returns allowed=true, or returns allowed=false together with the
	// oldest retained timestamp so the caller can compute a retry hint.
	Take(ctx context.Context, key string, limit Limit, now time.Time) (allowed bool, oldest time.Time, err error)

	// Sweep drops windows whose every entry is older than maxAge. Best
	// effort; stale empty windows cause no false rejections.
	Sweep(ctx context.Context, maxAge time.Duration, now time.Time) (removed int, err error)
}

// MemoryStore is the single-process WindowStore. Under a cold start all
// windows reset; the durable ledger is unaffected.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryStore returns an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

// Take implements WindowStore.
func (s *MemoryStore) Take(_ context.Context, key string, limit Limit, now time.Time) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-limit.Window)
	kept := s.windows[key][:0]
	for _, ts := range s.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit.MaxRequests {
		s.windows[key] = kept
		return false, kept[0], nil
	}

	s.windows[key] = append(kept, now)
	return true, time.Time{}, nil
}

// Sweep implements WindowStore.
func (s *MemoryStore) Sweep(_ context.Context, maxAge time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	removed := 0
	for key, window := range s.windows {
		live := false
		for _, ts := range window {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked windows. Used by tests and the sweep job
// log line.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
