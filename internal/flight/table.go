// Package flight tracks which features have a cast in progress.
//
// The table is in-process and non-blocking: a second acquire for a busy
// key fails immediately instead of waiting. Keys are canonical feature
// directories so two spellings of the same path share one entry.
package flight

import (
	"errors"
	"slices"
	"sync"
)

// ErrBusy is returned by Do when the key is already held.
var ErrBusy = errors.New("operation in progress")

// Table is a set of held keys guarded by a mutex.
type Table struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{busy: make(map[string]struct{})}
}

// TryAcquire claims key. It reports false when the key is already held.
func (t *Table) TryAcquire(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.busy[key]; held {
		return false
	}
	t.busy[key] = struct{}{}
	return true
}

// Release frees key. Releasing a key that is not held is a no-op.
func (t *Table) Release(key string) {
	t.mu.Lock()
	delete(t.busy, key)
	t.mu.Unlock()
}

// InFlight returns the held keys, sorted.
func (t *Table) InFlight() []string {
	t.mu.Lock()
	keys := make([]string, 0, len(t.busy))
	for k := range t.busy {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	slices.Sort(keys)
	return keys
}

// Do runs fn while holding key and releases it afterwards, including when
// fn panics.
func (t *Table) Do(key string, fn func() error) error {
	if !t.TryAcquire(key) {
		return ErrBusy
	}
	defer t.Release(key)
	return fn()
}
