package pipenode

import (
	"sync"

	"github.com/google/uuid"
)

// A completion reports that a listener reached a terminal state.
type completion struct {
	id  uuid.UUID // the listener instance
	err error     // nil if a payload was delivered
}

// completions is a fan-in queue carrying completion events from listener
// goroutines to the supervisor of a Receiver.
//
// Once the queue is closed, posting an event reports false instead of
// panicking, so a listener finishing during shutdown is harmless.
type completions struct {
	// μ protects the fields below:
	// Lock μ shared to copy or send to ch.
	// Lock μ exclusively to close ch.
	μ    sync.RWMutex
	ch   chan completion
	done chan struct{} // closed when the queue is closed
}

// At most one listener per Receiver is alive, so one buffered event suffices
// for the poster never to wait on the supervisor.
func newCompletions() *completions {
	return &completions{ch: make(chan completion, 1), done: make(chan struct{})}
}

// Events returns the channel from which the supervisor reads events. It is
// closed when q is closed.
func (q *completions) Events() <-chan completion {
	q.μ.RLock()
	defer q.μ.RUnlock()
	return q.ch
}

// Post enqueues ev, and reports whether it was accepted (true) or q was
// closed first (false).
func (q *completions) Post(ev completion) bool {
	q.μ.RLock()
	defer q.μ.RUnlock()
	select {
	case <-q.done:
		return false
	case q.ch <- ev:
		return true
	}
}

// Close closes q and reports whether this call closed it. Close may be
// called by at most one goroutine at a time.
func (q *completions) Close() bool {
	select {
	case <-q.done:
		return false
	default:
		close(q.done)

		q.μ.Lock()
		defer q.μ.Unlock()
		close(q.ch)
		q.ch = nil
		return true
	}
}
