// Package slot holds the latest value written by one goroutine for another
// to read at its own pace. A write replaces the previous value outright; a
// reader never blocks and never sees a half-written value.
package slot

import (
	"sync"
	"sync/atomic"
)

type entry[T any] struct {
	val     T
	version uint64
}

// Slot is a single-value, last-write-wins cell. The zero value is empty and
// ready to use.
type Slot[T any] struct {
	mu      sync.Mutex // writers only
	cur     atomic.Pointer[entry[T]]
	version uint64
}

// Store publishes v and returns its version. Versions start at 1 and grow
// with every store.
func (s *Slot[T]) Store(v T) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.cur.Store(&entry[T]{val: v, version: s.version})
	return s.version
}

// Load returns the latest value and its version, or ok=false before the first
// store.
func (s *Slot[T]) Load() (v T, version uint64, ok bool) {
	e := s.cur.Load()
	if e == nil {
		return v, 0, false
	}
	return e.val, e.version, true
}

// LoadSince returns the latest value only when it is newer than seen.
func (s *Slot[T]) LoadSince(seen uint64) (v T, version uint64, ok bool) {
	e := s.cur.Load()
	if e == nil || e.version <= seen {
		return v, seen, false
	}
	return e.val, e.version, true
}

// Reset empties the slot. Versions keep growing across resets.
func (s *Slot[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Store(nil)
}
