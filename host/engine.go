// Package host implements a small computation engine that solves a set of
// named nodes on a single goroutine.
//
// A node is solved when it is expired. Expiring a node is safe from any
// goroutine and wakes the engine; solutions themselves never run
// concurrently. A node may abort its solution, producing no output, and
// request to be expired again once the event it waits for has occurred.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/pipenode/internal/log"
)

// A Node is a unit of computation managed by an Engine.
type Node interface {
	Solve(*Context)
}

// NodeFunc adapts a function to a Node.
type NodeFunc func(*Context)

// Solve implements the Node interface.
func (f NodeFunc) Solve(c *Context) { f(c) }

// A Result records the most recent solution of a node.
type Result struct {
	ID       string
	Status   Status
	Output   any
	Messages []Message
	Runs     int // number of solutions so far
}

// A Report lists the results of the nodes computed by one solution pass, in
// the order they were solved.
type Report struct {
	Results []Result
}

// Options configure an Engine. A nil *Options provides default values.
type Options struct {
	// Logger receives engine diagnostics. If nil, the package logger is used.
	Logger *slog.Logger

	// OnSolve, if set, is called with each result as it is determined, on the
	// solving goroutine.
	OnSolve func(Result)
}

// An Engine solves expired nodes. Its methods are safe for concurrent use.
type Engine struct {
	log     *slog.Logger
	onSolve func(Result)
	wake    wake
	solver  *coalesce[Report]

	μ       sync.Mutex
	order   []string
	nodes   map[string]*entry
	expired mapset.Set[string]
}

type entry struct {
	node   Node
	inputs map[string]any
	last   Result
	notes  []Message // asynchronous messages since the last solution
}

// ErrUnknownNode is reported for operations naming a node that was not added.
var ErrUnknownNode = errors.New("unknown node")

// New constructs an empty Engine.
func New(opts *Options) *Engine {
	e := &Engine{
		nodes:   make(map[string]*entry),
		expired: mapset.New[string](),
	}
	if opts != nil {
		e.log, e.onSolve = opts.Logger, opts.OnSolve
	}
	if e.log == nil {
		e.log = log.WithComponent("host")
	}
	e.solver = newCoalesce(e.solveExpired)
	return e
}

// Add registers n with the given identifier and initial inputs, and expires
// it. It is an error if id is already in use.
func (e *Engine) Add(id string, n Node, inputs map[string]any) error {
	e.μ.Lock()
	defer e.μ.Unlock()
	if _, ok := e.nodes[id]; ok {
		return fmt.Errorf("add node %q: duplicate id", id)
	}
	in := make(map[string]any, len(inputs))
	for k, v := range inputs {
		in[k] = v
	}
	e.nodes[id] = &entry{node: n, inputs: in, last: Result{ID: id}}
	e.order = append(e.order, id)
	e.expireLocked(id)
	return nil
}

// SetInput sets an input of the node id and expires it.
func (e *Engine) SetInput(id, key string, v any) error {
	e.μ.Lock()
	defer e.μ.Unlock()
	ent, ok := e.nodes[id]
	if !ok {
		return fmt.Errorf("set input %q: %w %q", key, ErrUnknownNode, id)
	}
	ent.inputs[key] = v
	e.expireLocked(id)
	return nil
}

// Expire marks the node id for solution and wakes the engine. Expiring an
// unknown node is logged and otherwise ignored. Expire never blocks on a
// solution in progress, and may be called from any goroutine.
func (e *Engine) Expire(id string) {
	e.μ.Lock()
	defer e.μ.Unlock()
	if _, ok := e.nodes[id]; !ok {
		e.log.Warn("expire unknown node", "node", id)
		return
	}
	e.expireLocked(id)
}

// ExpireAll marks every node for solution.
func (e *Engine) ExpireAll() {
	e.μ.Lock()
	defer e.μ.Unlock()
	for _, id := range e.order {
		e.expireLocked(id)
	}
}

func (e *Engine) expireLocked(id string) {
	e.expired.Add(id)
	e.wake.Set()
}

// Warn attaches a warning to the node id outside of a solution. The message
// is reported with the node's current result until its next solution.
func (e *Engine) Warn(id, text string) {
	e.μ.Lock()
	defer e.μ.Unlock()
	if ent, ok := e.nodes[id]; ok {
		ent.notes = append(ent.notes, Message{Level: Warning, Text: text})
	}
}

// Result returns the current result for the node id.
func (e *Engine) Result(id string) (Result, bool) {
	e.μ.Lock()
	defer e.μ.Unlock()
	ent, ok := e.nodes[id]
	if !ok {
		return Result{}, false
	}
	r := ent.last
	r.Messages = append(slices.Clip(r.Messages), ent.notes...)
	return r, true
}

// Pending reports the number of expired nodes awaiting solution.
func (e *Engine) Pending() int {
	e.μ.Lock()
	defer e.μ.Unlock()
	return e.expired.Len()
}

// Ready returns a channel that is closed when at least one node has been
// expired since the last solution pass began.
func (e *Engine) Ready() <-chan struct{} { return e.wake.Ready() }

// Solve computes every expired node and reports the results. Concurrent
// calls to Solve share a single solution pass, so nodes are never solved on
// two goroutines at once.
//
// If ctx ends during the pass, the nodes not yet solved remain expired and
// Solve reports the context error.
func (e *Engine) Solve(ctx context.Context) (Report, error) { return e.solver.call(ctx) }

// Run solves expired nodes as they are expired, until ctx ends. If interval
// is positive, every node is also expired at that interval.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			e.ExpireAll()
		case <-e.wake.Ready():
			if _, err := e.Solve(ctx); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) solveExpired(ctx context.Context) (Report, error) {
	e.μ.Lock()
	e.wake.Reset() // expirations from here on wake the next pass
	var batch []string
	for _, id := range e.order {
		if e.expired.Has(id) {
			batch = append(batch, id)
		}
	}
	e.expired = mapset.New[string]()
	e.μ.Unlock()

	var rep Report
	for i, id := range batch {
		if err := ctx.Err(); err != nil {
			e.μ.Lock()
			e.expired.Add(batch[i:]...)
			e.wake.Set()
			e.μ.Unlock()
			return rep, err
		}
		r := e.solveOne(id)
		rep.Results = append(rep.Results, r)
		if e.onSolve != nil {
			e.onSolve(r)
		}
	}
	return rep, nil
}

func (e *Engine) solveOne(id string) Result {
	e.μ.Lock()
	ent := e.nodes[id]
	c := &Context{id: id, inputs: make(map[string]any, len(ent.inputs))}
	for k, v := range ent.inputs {
		c.inputs[k] = v
	}
	ent.notes = nil
	e.μ.Unlock()

	func() {
		defer func() {
			if x := recover(); x != nil {
				c.AddMessage(Error, fmt.Sprintf("panic in solve: %v", x))
			}
		}()
		ent.node.Solve(c)
	}()

	e.μ.Lock()
	defer e.μ.Unlock()
	r := Result{ID: id, Status: c.status(), Messages: c.messages, Runs: ent.last.Runs + 1}
	if r.Status == Solved {
		r.Output = c.output
	}
	ent.last = r
	e.log.Debug("node solved", "node", id, "status", r.Status.String(), "runs", r.Runs)
	return r
}
