// Package pipenode implements a computation node that receives data pushed
// asynchronously by another process over a named local channel.
//
// A [Receiver] is driven by a host engine that calls its Compute method at
// arbitrary times on a single goroutine. Compute never blocks: it reports
// the freshest payload received since the previous call, the cached copy of
// the last payload if nothing new arrived, or a deferred outcome if nothing
// has ever arrived. Meanwhile, single-shot listeners from package pipe
// receive payloads on their own goroutines, hand them to the Receiver, and
// ask the host to compute again.
package pipenode

import (
	"fmt"

	"github.com/creachadair/mds/value"
)

// A Payload is a decoded message. Duplicate must return a copy that shares
// no mutable state with the original.
type Payload[T any] interface {
	Duplicate() T
}

// A Deliverer accepts payloads pushed to it from another goroutine.
// Deliver must not block, and must not run the consumer's computation
// synchronously.
type Deliverer[T any] interface {
	Deliver(T)
}

// An Outcome is the result of one compute cycle: either an output value, or
// deferred, meaning no output is produced until the node is computed again.
type Outcome[T any] struct {
	v value.Maybe[T]
}

// Emit returns an Outcome with output v.
func Emit[T any](v T) Outcome[T] { return Outcome[T]{v: value.Just(v)} }

// Defer returns a deferred Outcome.
func Defer[T any]() Outcome[T] { return Outcome[T]{} }

// Deferred reports whether o has no output.
func (o Outcome[T]) Deferred() bool { return !o.v.Present() }

// Get returns the output of o and reports whether it is present.
func (o Outcome[T]) Get() (T, bool) { return o.v.GetOK() }

func (o Outcome[T]) String() string {
	if v, ok := o.v.GetOK(); ok {
		return fmt.Sprintf("Output(%v)", v)
	}
	return "Deferred"
}

// LatchState describes which payload a Receiver would report next.
type LatchState int

const (
	Empty  LatchState = iota // nothing has been received
	Fresh                    // an unconsumed payload is pending
	Cached                   // the last consumed payload is held for reuse
)

func (s LatchState) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Fresh:
		return "Fresh"
	case Cached:
		return "Cached"
	}
	return fmt.Sprintf("LatchState(%d)", int(s))
}
