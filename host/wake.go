package host

import "sync"

// wake is a level-triggered condition shared by the goroutines that expire
// nodes and the goroutine that runs solutions.
//
// A wake starts inactive. Set activates it, closing the channel returned by
// Ready; it stays active until Reset. A zero wake is ready for use.
type wake struct {
	μ      sync.Mutex
	ch     chan struct{} // lazily allocated by the first waiter
	closed bool
}

// Set activates w. Setting an active wake has no effect.
func (w *wake) Set() {
	w.μ.Lock()
	defer w.μ.Unlock()

	if w.ch == nil {
		w.ch = make(chan struct{})
	}
	if !w.closed {
		close(w.ch)
		w.closed = true
	}
}

// Reset deactivates w. Resetting an inactive wake has no effect.
func (w *wake) Reset() {
	w.μ.Lock()
	defer w.μ.Unlock()

	if w.closed {
		w.ch = nil
		w.closed = false
	}
}

// Ready returns a channel that is closed when w is active.
func (w *wake) Ready() <-chan struct{} {
	w.μ.Lock()
	defer w.μ.Unlock()

	if w.ch == nil {
		w.ch = make(chan struct{})
	}
	return w.ch
}
