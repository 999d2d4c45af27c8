package pipe_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/creachadair/pipenode/pipe"
	"github.com/fortytw2/leaktest"
)

// result captures the single callback of a started listener.
type result struct {
	value int
	err   error
}

func decodeInt(data []byte) (int, error) { return strconv.Atoi(string(data)) }

func startListener(t *testing.T, name string, opts *pipe.Options) (*pipe.Listener[int], <-chan result) {
	t.Helper()
	l, err := pipe.Listen(name, decodeInt, opts)
	if err != nil {
		t.Fatalf("Listen(%q): %v", name, err)
	}
	if got := l.State(); got != pipe.Listening {
		t.Errorf("State after Listen: got %v, want %v", got, pipe.Listening)
	}
	done := make(chan result, 2) // >1 so a second callback is observable
	if err := l.Start(
		func(v int) { done <- result{value: v} },
		func(err error) { done <- result{err: err} },
	); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return l, done
}

func await(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for listener callback")
		return result{}
	}
}

func rawConn(t *testing.T, opts *pipe.Options, name string) net.Conn {
	t.Helper()
	path, err := pipe.Path(opts.Dir, name)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func TestListener(t *testing.T) {
	defer leaktest.Check(t)()
	opts := &pipe.Options{Dir: t.TempDir()}
	ctx := context.Background()

	t.Run("Message", func(t *testing.T) {
		l, done := startListener(t, "alpha", opts)
		if err := pipe.Send(ctx, "alpha", []byte("42"), opts); err != nil {
			t.Fatalf("Send: %v", err)
		}
		r := await(t, done)
		if r.err != nil || r.value != 42 {
			t.Errorf("Callback: got %v, %v; want 42, nil", r.value, r.err)
		}
		if got := l.State(); got != pipe.Completed {
			t.Errorf("State: got %v, want %v", got, pipe.Completed)
		}
		select {
		case extra := <-done:
			t.Errorf("Unexpected second callback: %+v", extra)
		case <-time.After(20 * time.Millisecond):
		}
		if err := l.Start(func(int) {}, func(error) {}); !errors.Is(err, pipe.ErrStarted) {
			t.Errorf("Second Start: got %v, want %v", err, pipe.ErrStarted)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		l, done := startListener(t, "alpha", opts)
		if err := pipe.Send(ctx, "alpha", []byte("forty-two"), opts); err != nil {
			t.Fatalf("Send: %v", err)
		}
		r := await(t, done)
		var derr *pipe.DeserializeError
		if !errors.As(r.err, &derr) || derr.Name != "alpha" {
			t.Errorf("Callback error: got %v, want DeserializeError", r.err)
		}
		if got := l.State(); got != pipe.Failed {
			t.Errorf("State: got %v, want %v", got, pipe.Failed)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		_, done := startListener(t, "alpha", opts)
		conn := rawConn(t, opts, "alpha")
		conn.Write([]byte{0, 0, 0, 10, '1'})
		conn.Close()

		var derr *pipe.DeserializeError
		if r := await(t, done); !errors.As(r.err, &derr) {
			t.Errorf("Callback error: got %v, want DeserializeError", r.err)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		small := &pipe.Options{Dir: opts.Dir, MaxFrame: 4}
		_, done := startListener(t, "alpha", small)
		if err := pipe.Send(ctx, "alpha", []byte("123456"), small); err != nil {
			t.Fatalf("Send: %v", err)
		}
		var derr *pipe.DeserializeError
		if r := await(t, done); !errors.As(r.err, &derr) {
			t.Errorf("Callback error: got %v, want DeserializeError", r.err)
		}
	})

	t.Run("PeerClosed", func(t *testing.T) {
		_, done := startListener(t, "alpha", opts)
		rawConn(t, opts, "alpha").Close()

		if r := await(t, done); !errors.Is(r.err, pipe.ErrConnectionClosed) {
			t.Errorf("Callback error: got %v, want %v", r.err, pipe.ErrConnectionClosed)
		}

		// An immediate re-listen on the same name is safe.
		l, err := pipe.Listen("alpha", decodeInt, opts)
		if err != nil {
			t.Fatalf("Re-listen: %v", err)
		}
		l.Close()
	})

	t.Run("DecoderPanic", func(t *testing.T) {
		l, err := pipe.Listen("alpha", func([]byte) (int, error) { panic("boom") }, opts)
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
		done := make(chan error, 1)
		l.Start(func(int) { done <- nil }, func(err error) { done <- err })
		if err := pipe.Send(ctx, "alpha", []byte("1"), opts); err != nil {
			t.Fatalf("Send: %v", err)
		}
		var derr *pipe.DeserializeError
		if err := <-done; !errors.As(err, &derr) {
			t.Errorf("Callback error: got %v, want DeserializeError", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		l, done := startListener(t, "alpha", opts)
		if err := l.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
		if r := await(t, done); !errors.Is(r.err, net.ErrClosed) {
			t.Errorf("Callback error: got %v, want %v", r.err, net.ErrClosed)
		}
		if err := l.Close(); err != nil {
			t.Errorf("Second Close: %v", err)
		}
		if got := l.State(); got != pipe.Failed {
			t.Errorf("State: got %v, want %v", got, pipe.Failed)
		}
	})

	t.Run("CloseUnstarted", func(t *testing.T) {
		l, err := pipe.Listen("alpha", decodeInt, opts)
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
		l.Close()
		if got := l.State(); got != pipe.Failed {
			t.Errorf("State: got %v, want %v", got, pipe.Failed)
		}
		if err := l.Start(func(int) {}, func(error) {}); !errors.Is(err, pipe.ErrStarted) {
			t.Errorf("Start after Close: got %v, want %v", err, pipe.ErrStarted)
		}
	})
}

func TestBind(t *testing.T) {
	defer leaktest.Check(t)()
	opts := &pipe.Options{Dir: t.TempDir()}

	t.Run("InUse", func(t *testing.T) {
		l, err := pipe.Listen("beta", decodeInt, opts)
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
		defer l.Close()

		_, err = pipe.Listen("beta", decodeInt, opts)
		var berr *pipe.BindError
		if !errors.As(err, &berr) || !errors.Is(err, pipe.ErrAddressInUse) {
			t.Errorf("Second Listen: got %v, want BindError wrapping %v", err, pipe.ErrAddressInUse)
		}
	})

	t.Run("BadName", func(t *testing.T) {
		for _, name := range []string{"", "a/b", ".."} {
			_, err := pipe.Listen(name, decodeInt, opts)
			var berr *pipe.BindError
			if !errors.As(err, &berr) {
				t.Errorf("Listen(%q): got %v, want BindError", name, err)
			}
		}
	})

	t.Run("Stale", func(t *testing.T) {
		// A socket file with no owner is replaced.
		path := filepath.Join(opts.Dir, "gamma.sock")
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		l, err := pipe.Listen("gamma", decodeInt, opts)
		if err != nil {
			t.Fatalf("Listen over stale socket: %v", err)
		}
		l.Close()
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Socket file after Close: got %v, want not exist", err)
		}
	})
}

func TestSendNoListener(t *testing.T) {
	defer leaktest.Check(t)()
	opts := &pipe.Options{Dir: t.TempDir()}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pipe.Send(ctx, "nobody", []byte("1"), opts); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send: got %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := pipe.WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got, want := buf.Len(), 4+5; got != want {
		t.Errorf("Frame length: got %d, want %d", got, want)
	}
	body, err := pipe.ReadFrame(&buf, 0)
	if err != nil || string(body) != "hello" {
		t.Errorf("ReadFrame: got %q, %v; want hello, nil", body, err)
	}
	if _, err := pipe.ReadFrame(&buf, 0); !errors.Is(err, pipe.ErrConnectionClosed) {
		t.Errorf("ReadFrame at EOF: got %v, want %v", err, pipe.ErrConnectionClosed)
	}
	if _, err := pipe.ReadFrame(bytes.NewReader([]byte{0, 0}), 0); err == nil || errors.Is(err, pipe.ErrConnectionClosed) {
		t.Errorf("ReadFrame short header: got %v, want a framing error", err)
	}
}
