package host

import (
	"context"
	"sync"
)

// coalesce shares one execution of a function among all the goroutines that
// call it concurrently, so the function never runs on two goroutines at once.
//
// The first caller on an idle coalesce runs the function. Callers arriving
// while it runs wait for its result. If the runner's context ends before a
// result is determined, one waiter is woken to try again.
type coalesce[T any] struct {
	run func(context.Context) (T, error) // read-only after initialization

	μ      sync.Mutex
	waits  []chan outcome[T]
	active bool
}

type outcome[T any] struct {
	value T
	err   error
}

func newCoalesce[T any](run func(context.Context) (T, error)) *coalesce[T] {
	return &coalesce[T]{run: run}
}

// call runs or joins an execution of c.run and reports its result.
func (c *coalesce[T]) call(ctx context.Context) (T, error) {
	var zero T

	c.μ.Lock()
	for c.active {
		// N.B. buffered, so a waiter that gives up does not stall the runner.
		ready := make(chan outcome[T], 1)
		c.waits = append(c.waits, ready)

		c.μ.Unlock()
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case r, ok := <-ready:
			if ok {
				return r.value, r.err
			}
		}
		c.μ.Lock()
		// The runner gave up without a result; retry if ctx allows.
	}
	defer c.μ.Unlock()

	c.active = true
	c.μ.Unlock()
	v, err := c.run(ctx)
	c.μ.Lock()
	c.active = false

	if err == nil || ctx.Err() == nil {
		for _, w := range c.waits {
			w <- outcome[T]{value: v, err: err}
			close(w)
		}
		c.waits = nil
		return v, err
	}

	for _, w := range c.waits {
		close(w) // no value: the waiter must retry
	}
	c.waits = nil
	return zero, ctx.Err()
}
