package pipenode

import (
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/creachadair/mds/value"
	"github.com/creachadair/pipenode/internal/log"
	"github.com/creachadair/pipenode/pipe"
)

// Diagnostics reported through the warning side-channel.
const (
	NoNewData   = "did not receive any new data"
	MissingName = "please provide a unique name for the channel"
)

// ErrClosed is reported by Close if the Receiver was already closed.
var ErrClosed = errors.New("receiver is closed")

// ErrNullPayload is reported, wrapped in a *pipe.DeserializeError, for a
// message that decodes to a nil payload.
var ErrNullPayload = errors.New("null payload")

// Options configure a Receiver. A nil *Options provides default values.
type Options struct {
	// Dir is the directory holding channel sockets (see pipe.Options).
	Dir string

	// MaxFrame is the largest message body accepted (see pipe.Options).
	MaxFrame int

	// Notify, if set, is called after each delivery to ask the host to
	// compute again. It is called on a listener goroutine and must not block.
	Notify func()

	// Warn, if set, receives non-fatal diagnostics raised outside of Compute,
	// such as listener errors. It is called on a listener goroutine and must
	// not block; it may call Close. If nil, diagnostics are logged at WARN.
	// A chained restart that fails to bind is logged rather than reported
	// here, and is retried by the next call to Compute.
	Warn func(string)

	// Logger receives diagnostics. If nil, the package logger is used.
	Logger *slog.Logger

	// NoChain disables restarting the listener from its own completion. If
	// set, a new listener is armed only by the next call to Compute.
	NoChain bool
}

// Stats are counters describing the activity of a Receiver.
type Stats struct {
	Listeners  int // listeners created
	Delivered  int // payloads delivered into the fresh slot
	Consumed   int // payloads consumed by Compute
	Superseded int // payloads replaced in the fresh slot before consumption

	BindErrors        int
	DeserializeErrors int
	ClosedErrors      int // peers that disconnected without sending
	OtherErrors       int
}

// A Receiver is a node whose output is the latest payload received on a
// named channel. Compute must be called from one goroutine at a time; the
// remaining methods are safe for concurrent use.
type Receiver[T Payload[T]] struct {
	decode  func([]byte) (T, error)
	popts   *pipe.Options
	notify  func()
	warn    func(string)
	log     *slog.Logger
	chain   bool
	fresh   *slot[T]
	events  *completions
	stopped chan struct{} // closed when the supervisor exits

	μ      sync.Mutex
	cached value.Maybe[T]
	name   string            // channel name from the latest Compute
	active *pipe.Listener[T] // non-nil while a listener is not terminal
	closed bool
	stats  Stats
}

// NewReceiver constructs a Receiver that decodes messages with decode. The
// caller must call Close when the Receiver is no longer needed.
// NewReceiver panics if decode == nil.
func NewReceiver[T Payload[T]](decode func([]byte) (T, error), opts *Options) *Receiver[T] {
	if decode == nil {
		panic("pipenode: nil decoder")
	}
	if opts == nil {
		opts = new(Options)
	}
	r := &Receiver[T]{
		decode:  rejectNil(decode),
		notify:  opts.Notify,
		warn:    opts.Warn,
		log:     opts.Logger,
		chain:   !opts.NoChain,
		fresh:   newSlot[T](),
		events:  newCompletions(),
		stopped: make(chan struct{}),
	}
	if r.log == nil {
		r.log = log.WithComponent("receiver")
	}
	if r.warn == nil {
		r.warn = func(msg string) { r.log.Warn(msg) }
	}
	r.popts = &pipe.Options{Dir: opts.Dir, MaxFrame: opts.MaxFrame, Logger: r.log}
	go r.supervise(r.events.Events())
	return r
}

// rejectNil wraps decode to report ErrNullPayload for a nil result, so that
// a nil payload is never delivered or cached.
func rejectNil[T any](decode func([]byte) (T, error)) func([]byte) (T, error) {
	return func(data []byte) (T, error) {
		v, err := decode(data)
		if err == nil && isNil(v) {
			return v, ErrNullPayload
		}
		return v, err
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Compute runs one compute cycle for the channel name and reports its
// outcome. Compute does not block.
//
// If a fresh payload is pending, Compute outputs it and caches a duplicate.
// Otherwise, if a payload was cached, Compute outputs a duplicate of the
// cached payload and warns NoNewData. Otherwise, Compute returns a deferred
// outcome; the Notify hook will request another cycle once a payload
// arrives. In every case Compute ensures a listener is active on name.
func (r *Receiver[T]) Compute(name string) Outcome[T] { return r.compute(name, r.warn) }

func (r *Receiver[T]) compute(name string, warn func(string)) Outcome[T] {
	if name == "" {
		warn(MissingName)
	}
	r.μ.Lock()
	r.name = name
	r.μ.Unlock()

	// Fallback for a chained restart that did not happen.
	if err := r.ensureListening(); err != nil {
		warn(err.Error())
	}

	if v, ok := r.fresh.Take(); ok {
		r.μ.Lock()
		defer r.μ.Unlock()
		r.cached = value.Just(v.Duplicate())
		r.stats.Consumed++
		return Emit(v)
	}

	r.μ.Lock()
	c, ok := r.cached.GetOK()
	r.μ.Unlock()
	if ok {
		warn(NoNewData)
		return Emit(c.Duplicate())
	}
	return Defer[T]()
}

// Deliver stores v as the fresh payload, replacing any payload not yet
// consumed, and asks the host to compute again. A nil payload is discarded.
// Deliver implements the Deliverer interface, and is called by listeners on
// their own goroutines.
func (r *Receiver[T]) Deliver(v T) {
	if isNil(v) {
		r.log.Warn("nil payload discarded")
		return
	}
	replaced := r.fresh.Set(v)

	r.μ.Lock()
	r.stats.Delivered++
	if replaced {
		r.stats.Superseded++
	}
	r.μ.Unlock()

	if replaced {
		r.log.Debug("fresh payload superseded before consumption")
	}
	if r.notify != nil {
		r.notify()
	}
}

// State reports the current state of the latch.
func (r *Receiver[T]) State() LatchState {
	if r.fresh.Full() {
		return Fresh
	}
	r.μ.Lock()
	defer r.μ.Unlock()
	if r.cached.Present() {
		return Cached
	}
	return Empty
}

// Listening reports whether a listener is currently active.
func (r *Receiver[T]) Listening() bool {
	r.μ.Lock()
	defer r.μ.Unlock()
	return r.active != nil
}

// Stats returns a snapshot of the counters for r.
func (r *Receiver[T]) Stats() Stats {
	r.μ.Lock()
	defer r.μ.Unlock()
	return r.stats
}

// Close stops listening. A listener that has not yet accepted a connection
// is closed; one reading a message is left to complete, and its payload is
// still delivered. After Close, Compute continues to report from the latch
// but arms no listeners. Close reports ErrClosed if r was already closed.
func (r *Receiver[T]) Close() error {
	r.μ.Lock()
	if r.closed {
		r.μ.Unlock()
		return ErrClosed
	}
	r.closed = true
	l := r.active
	r.μ.Unlock()

	if l != nil {
		l.Close() // no effect once a peer was accepted
	}
	r.events.Close()
	<-r.stopped
	return nil
}

// ensureListening arms a listener on the current name unless one is active,
// r is closed, or no name is known. It reports an error if binding failed.
func (r *Receiver[T]) ensureListening() error {
	r.μ.Lock()
	defer r.μ.Unlock()
	if r.closed || r.active != nil || r.name == "" {
		return nil
	}

	l, err := pipe.Listen(r.name, r.decode, r.popts)
	if err != nil {
		r.stats.BindErrors++
		r.log.Debug("listen failed", "channel", r.name, "error", err)
		return err
	}
	r.stats.Listeners++
	r.active = l

	onMessage := func(v T) {
		r.Deliver(v)
		r.finish(l, nil)
	}
	onError := func(err error) { r.finish(l, err) }
	if err := l.Start(onMessage, onError); err != nil {
		r.active = nil
		l.Close()
		return err
	}
	return nil
}

// finish records the terminal transition of l and, when chaining, asks the
// supervisor to arm the next listener.
func (r *Receiver[T]) finish(l *pipe.Listener[T], err error) {
	r.μ.Lock()
	if r.active == l {
		r.active = nil
	}
	var derr *pipe.DeserializeError
	switch {
	case err == nil:
	case errors.As(err, &derr):
		r.stats.DeserializeErrors++
	case errors.Is(err, pipe.ErrConnectionClosed):
		r.stats.ClosedErrors++
	default:
		r.stats.OtherErrors++
	}
	closed := r.closed
	r.μ.Unlock()

	if closed {
		return
	}
	if err != nil && !errors.Is(err, pipe.ErrConnectionClosed) {
		r.warn(err.Error())
	}
	if r.chain {
		r.events.Post(completion{id: l.ID(), err: err})
	}
}

// supervise arms a new listener for each completion event on evs, until r
// is closed. Listeners never restart themselves.
func (r *Receiver[T]) supervise(evs <-chan completion) {
	defer close(r.stopped)
	for ev := range evs {
		r.log.Debug("listener finished", "listener", ev.id.String(), "error", ev.err)
		if err := r.ensureListening(); err != nil {
			r.log.Warn("restart failed", "error", err)
		}
	}
}
