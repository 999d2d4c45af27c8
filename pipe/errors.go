package pipe

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is reported when a peer connects and disconnects
	// without sending any data. It is benign, and the caller may listen again
	// immediately.
	ErrConnectionClosed = errors.New("connection closed before any data was sent")

	// ErrStarted is returned by Start if the listener was already started or
	// closed.
	ErrStarted = errors.New("listener already started")

	// ErrAddressInUse is wrapped by a BindError when another live listener
	// holds the channel name.
	ErrAddressInUse = errors.New("channel name is in use")
)

// A BindError reports that a listener could not be bound to a channel name.
type BindError struct {
	Name string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind channel %q: %v", e.Name, e.Err) }

func (e *BindError) Unwrap() error { return e.Err }

// A DeserializeError reports that a message arrived but could not be framed
// or decoded. The message is discarded.
type DeserializeError struct {
	Name string
	Err  error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("decode message on channel %q: %v", e.Name, e.Err)
}

func (e *DeserializeError) Unwrap() error { return e.Err }
