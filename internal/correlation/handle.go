// ABOUTME: Single-assignment completion handle for one pending request.
// ABOUTME: The first Fulfill, Fail, or Cancel wins; Done is closed when settled.

package correlation

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is returned by Result and Wait when the handle was cancelled,
// typically because the gateway shut down before a response arrived.
var ErrCancelled = errors.New("request cancelled")

// errFailed stands in for a nil reason passed to Fail.
var errFailed = errors.New("request failed")

// State describes where a Handle is in its lifecycle.
type State int

const (
	StatePending State = iota
	StateFulfilled
	StateFailed
	StateCancelled
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle is the eventual outcome of one request. It can be settled only once.
type Handle struct {
	mu    sync.Mutex
	state State
	text  string
	err   error
	done  chan struct{}
}

// NewHandle returns a pending handle.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Fulfill settles the handle with the response text.
// Returns false if the handle was already settled.
func (h *Handle) Fulfill(text string) bool {
	return h.settle(StateFulfilled, text, nil)
}

// Fail settles the handle with an error. A nil err is replaced with a generic
// failure so Result never reports a failed handle without a reason.
func (h *Handle) Fail(err error) bool {
	if err == nil {
		err = errFailed
	}
	return h.settle(StateFailed, "", err)
}

// Cancel settles the handle as cancelled.
func (h *Handle) Cancel() bool {
	return h.settle(StateCancelled, "", ErrCancelled)
}

func (h *Handle) settle(state State, text string, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StatePending {
		return false
	}
	h.state = state
	h.text = text
	h.err = err
	close(h.done)
	return true
}

// Done returns a channel that is closed once the handle is settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// State reports the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Result returns the settled outcome. It must only be called after Done is
// closed; on a pending handle it returns an empty string and a nil error.
func (h *Handle) Result() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text, h.err
}

// Wait blocks until the handle settles or ctx is done.
// When ctx wins, ctx.Err() is returned and the handle is left untouched.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
