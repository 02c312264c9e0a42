// ABOUTME: Process-wide map from correlation id to its pending completion handle.
// ABOUTME: Create, Resolve, Remove, and DrainAll are atomic under a single mutex.

package correlation

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed indicates the table no longer accepts new registrations.
var ErrClosed = errors.New("correlation table closed")

// maxCreateAttempts bounds id regeneration on the off chance of a collision.
const maxCreateAttempts = 4

// ErrIDExhausted indicates Create could not find an unused id.
var ErrIDExhausted = errors.New("could not allocate unique correlation id")

// Table tracks requests that are waiting for a response.
type Table struct {
	mu      sync.Mutex
	pending map[string]*Handle
	closed  bool

	// newID generates candidate ids; replaced in tests.
	newID func() string
}

// NewTable creates an empty table that issues random UUIDv4 ids.
func NewTable() *Table {
	return &Table{
		pending: make(map[string]*Handle),
		newID:   func() string { return uuid.New().String() },
	}
}

// Create allocates a fresh id, registers a pending handle for it and returns
// both. Returns ErrClosed after Close has been called.
func (t *Table) Create() (string, *Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", nil, ErrClosed
	}

	for range maxCreateAttempts {
		id := t.newID()
		if _, exists := t.pending[id]; exists {
			continue
		}
		h := NewHandle()
		t.pending[id] = h
		return id, h, nil
	}
	return "", nil, ErrIDExhausted
}

// Resolve removes the entry for id and fulfills its handle with text.
// Returns false if no entry exists (stale or unknown id); nothing is mutated.
func (t *Table) Resolve(id, text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.pending[id]
	if !ok {
		return false
	}
	delete(t.pending, id)
	h.Fulfill(text)
	return true
}

// Remove deletes the entry for id without settling its handle and returns it.
// The caller owns the handle afterwards and decides how to settle it.
func (t *Table) Remove(id string) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return h, ok
}

// DrainAll empties the table and returns every handle that was pending.
func (t *Table) DrainAll() []*Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	handles := make([]*Handle, 0, len(t.pending))
	for id, h := range t.pending {
		handles = append(handles, h)
		delete(t.pending, id)
	}
	return handles
}

// Close stops the table from accepting new registrations. Entries already
// pending are unaffected; use DrainAll to release them. Safe to call more
// than once.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Closed reports whether Close has been called.
func (t *Table) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Len returns the number of pending entries (for testing/monitoring).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Has reports whether id is currently pending.
func (t *Table) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[id]
	return ok
}
