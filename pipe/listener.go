// Package pipe implements single-shot listeners on named local channels.
//
// A channel name maps to a Unix-domain socket in a directory shared by the
// communicating processes. A [Listener] accepts exactly one connection, reads
// exactly one frame from it, decodes the frame, and reports the result to a
// callback on its own goroutine. A listener never re-arms itself; to receive
// the next message, the caller creates a new listener.
package pipe

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/creachadair/pipenode/internal/log"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Listener.
type State int32

const (
	Listening State = iota // bound, waiting for a peer
	Connected              // a peer connected, reading its message
	Completed              // a message was delivered (terminal)
	Failed                 // the listener failed or was closed (terminal)
)

var stateNames = [...]string{"Listening", "Connected", "Completed", "Failed"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// Options control how a listener binds and reads. A nil *Options is ready
// for use and provides default values.
type Options struct {
	// Dir is the directory holding channel sockets. If empty, a pipenode
	// directory under os.TempDir is used.
	Dir string

	// MaxFrame is the largest frame body accepted. If zero or negative,
	// DefaultMaxFrame is used.
	MaxFrame int

	// Logger receives lifecycle diagnostics. If nil, the package logger is
	// used.
	Logger *slog.Logger
}

func (o *Options) dir() string {
	if o == nil || o.Dir == "" {
		return filepath.Join(os.TempDir(), "pipenode")
	}
	return o.Dir
}

func (o *Options) maxFrame() int {
	if o == nil || o.MaxFrame <= 0 {
		return DefaultMaxFrame
	}
	return o.MaxFrame
}

func (o *Options) logger(name string) *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.WithChannel("listener", name)
	}
	return o.Logger.With(slog.String("channel", name))
}

// Path returns the socket path for the channel name in dir.
func Path(dir, name string) (string, error) {
	if name == "" {
		return "", errors.New("empty channel name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid channel name %q", name)
	}
	return filepath.Join(dir, name+".sock"), nil
}

// A Listener is a single-shot listener bound to a channel name. Each Listener
// services at most one message and must be discarded once it reaches a
// terminal state.
type Listener[T any] struct {
	id       uuid.UUID
	name     string
	decode   func([]byte) (T, error)
	maxFrame int
	log      *slog.Logger

	ln    *net.UnixListener
	lock  *os.File // flock held while the name is bound
	state atomic.Int32

	started   atomic.Bool
	closeOnce sync.Once
}

// Listen binds a single-shot listener to the channel name. Messages are
// decoded with decode. If the channel cannot be bound, Listen reports a
// *BindError.
//
// Ownership of a name is arbitrated by an exclusive lock on a file next to
// the socket, so a socket left behind by a dead process is removed and
// replaced, while a name held by a live listener reports ErrAddressInUse.
func Listen[T any](name string, decode func([]byte) (T, error), opts *Options) (*Listener[T], error) {
	dir := opts.dir()
	path, err := Path(dir, name)
	if err != nil {
		return nil, &BindError{Name: name, Err: err}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &BindError{Name: name, Err: err}
	}
	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, &BindError{Name: name, Err: err}
	}

	// Holding the lock, any existing socket file is stale.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		releaseLock(lock)
		return nil, &BindError{Name: name, Err: err}
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		releaseLock(lock)
		return nil, &BindError{Name: name, Err: err}
	}
	ln.SetUnlinkOnClose(true)

	l := &Listener[T]{
		id:       uuid.New(),
		name:     name,
		decode:   decode,
		maxFrame: opts.maxFrame(),
		ln:       ln,
		lock:     lock,
	}
	l.log = opts.logger(name).With(slog.String("listener", l.id.String()))
	l.state.Store(int32(Listening))
	l.log.Debug("listener bound", "path", path)
	return l, nil
}

// ID returns the unique identifier of l.
func (l *Listener[T]) ID() uuid.UUID { return l.id }

// Name returns the channel name l is bound to.
func (l *Listener[T]) Name() string { return l.name }

// State returns the current lifecycle state of l.
func (l *Listener[T]) State() State { return State(l.state.Load()) }

// Start begins an asynchronous accept-then-read and returns immediately.
// Exactly one of onMessage or onError is called later, on a goroutine other
// than the caller's, after which l is in a terminal state.
//
// A peer that disconnects without sending reports ErrConnectionClosed. A
// message that cannot be framed or decoded reports a *DeserializeError.
// Start reports ErrStarted if l was already started or closed.
func (l *Listener[T]) Start(onMessage func(T), onError func(error)) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	go l.serve(onMessage, onError)
	return nil
}

// Close releases the channel name. If l was started and has not yet accepted
// a connection, its pending callback reports an error wrapping net.ErrClosed.
// Close is safe to call more than once and from any goroutine.
func (l *Listener[T]) Close() error {
	if l.started.CompareAndSwap(false, true) {
		// Never started: nobody else will record the terminal state.
		l.state.Store(int32(Failed))
	}
	return l.unbind()
}

func (l *Listener[T]) unbind() (err error) {
	l.closeOnce.Do(func() {
		err = l.ln.Close()
		releaseLock(l.lock)
	})
	return
}

func (l *Listener[T]) serve(onMessage func(T), onError func(error)) {
	conn, err := l.ln.Accept()

	// Single-shot: the name is released as soon as one peer is accepted.
	l.unbind()
	if err != nil {
		l.fail(onError, fmt.Errorf("accept on channel %q: %w", l.name, err))
		return
	}
	defer conn.Close()
	l.state.Store(int32(Connected))
	l.log.Debug("peer connected")

	body, err := ReadFrame(conn, l.maxFrame)
	if errors.Is(err, ErrConnectionClosed) {
		l.fail(onError, err)
		return
	} else if err != nil {
		l.fail(onError, &DeserializeError{Name: l.name, Err: err})
		return
	}
	v, err := l.safeDecode(body)
	if err != nil {
		l.fail(onError, &DeserializeError{Name: l.name, Err: err})
		return
	}
	l.state.Store(int32(Completed))
	l.log.Debug("message received", "bytes", len(body))
	onMessage(v)
}

func (l *Listener[T]) fail(onError func(error), err error) {
	l.state.Store(int32(Failed))
	l.log.Debug("listener failed", "error", err)
	onError(err)
}

// safeDecode calls the decoder, converting a panic into an error so that no
// fault crosses back into the caller's goroutines.
func (l *Listener[T]) safeDecode(body []byte) (v T, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("panic in decoder: %v", x)
		}
	}()
	return l.decode(body)
}

func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrAddressInUse
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}
