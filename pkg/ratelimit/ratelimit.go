// Package ratelimit implements the fixed-window quota used by the
// identification endpoint.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type entry struct {
	count   int
	resetAt time.Time
}

// FixedWindow keeps one counter per key in process memory. Entries expire
// logically and are never evicted, so the map grows with distinct keys.
type FixedWindow struct {
	Max    int
	Window time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewFixedWindow(max int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		Max:     max,
		Window:  window,
		Now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (fw *FixedWindow) Allow(_ context.Context, key string) (bool, error) {

	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.Now()
	e, ok := fw.entries[key]
	if !ok || !now.Before(e.resetAt) {
		fw.entries[key] = &entry{count: 1, resetAt: now.Add(fw.Window)}
		return true, nil
	}

	// denied calls do not count
	if e.count >= fw.Max {
		return false, nil
	}
	e.count++

	return true, nil

}
