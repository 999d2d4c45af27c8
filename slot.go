package pipenode

import "sync"

// A slot is a single-value buffer shared by producers and a consumer.
// Unlike a handoff, a slot keeps the latest value: setting a value while
// another is buffered replaces it.
type slot[T any] struct {
	μ  sync.Mutex // serializes producers
	ch chan T
}

func newSlot[T any]() *slot[T] { return &slot[T]{ch: make(chan T, 1)} }

// Set buffers v, discarding any value already buffered, and reports whether
// a value was discarded. Set does not block.
func (s *slot[T]) Set(v T) (replaced bool) {
	s.μ.Lock()
	defer s.μ.Unlock()

	select {
	case <-s.ch:
		replaced = true
	default:
	}
	s.ch <- v // the buffer is empty and only producers send
	return
}

// Take removes and returns the buffered value, if any. Take does not block.
func (s *slot[T]) Take() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Full reports whether a value is buffered.
func (s *slot[T]) Full() bool { return len(s.ch) != 0 }
