package pipe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// retryDelay is the pause between dial attempts while no listener is bound.
const retryDelay = 10 * time.Millisecond

// Send connects to the channel name and writes body as one frame.
//
// A listener is single-shot, so between two listeners the name may briefly
// be unbound. Send retries the connection until a listener accepts it or ctx
// ends.
func Send(ctx context.Context, name string, body []byte, opts *Options) error {
	path, err := Path(opts.dir(), name)
	if err != nil {
		return err
	}
	conn, err := dial(ctx, path)
	if err != nil {
		return fmt.Errorf("send to channel %q: %w", name, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(dl)
	}
	if err := WriteFrame(conn, body); err != nil {
		return fmt.Errorf("send to channel %q: %w", name, err)
	}
	return nil
}

// SendValue encodes v with encode and sends it to the channel name.
func SendValue[T any](ctx context.Context, name string, v T, encode func(T) ([]byte, error), opts *Options) error {
	body, err := encode(v)
	if err != nil {
		return fmt.Errorf("send to channel %q: %w", name, err)
	}
	return Send(ctx, name, body, opts)
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		} else if ctx.Err() != nil {
			return nil, fmt.Errorf("no listener: %w", ctx.Err())
		} else if !errors.Is(err, syscall.ENOENT) && !errors.Is(err, syscall.ECONNREFUSED) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no listener: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}
