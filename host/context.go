package host

import "fmt"

// Level is the severity of a runtime message attached to a node.
type Level int

const (
	Remark Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Remark:
		return "remark"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// A Message is a runtime message attached to a node.
type Message struct {
	Level Level
	Text  string
}

func (m Message) String() string { return m.Level.String() + ": " + m.Text }

// Status is the outcome of the most recent solution of a node.
type Status int

const (
	Pending  Status = iota // not yet solved
	Solved                 // produced an output
	Deferred               // aborted, waiting to be expired again
	Failed                 // panicked or reported an error message
)

var statusNames = [...]string{"pending", "solved", "deferred", "failed"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// A Context carries the inputs and collects the results of one solution of
// one node. It is valid only during the call to Solve that received it.
type Context struct {
	id       string
	inputs   map[string]any
	output   any
	aborted  bool
	messages []Message
}

// ID returns the identifier of the node being solved.
func (c *Context) ID() string { return c.id }

// Input returns the value of the named input, and whether it was present.
func (c *Context) Input(key string) (any, bool) {
	v, ok := c.inputs[key]
	return v, ok
}

// Text returns the named input as a string. It reports false if the input is
// missing, not a string, or empty.
func (c *Context) Text(key string) (string, bool) {
	v, ok := c.inputs[key].(string)
	return v, ok && v != ""
}

// SetOutput records v as the output of this solution.
func (c *Context) SetOutput(v any) { c.output = v }

// Abort ends this solution without an output. The node is deferred until it
// is expired again. Abort discards any output set earlier in the solution.
func (c *Context) Abort() { c.aborted = true }

// AddMessage attaches a runtime message to this solution.
func (c *Context) AddMessage(level Level, text string) {
	c.messages = append(c.messages, Message{Level: level, Text: text})
}

func (c *Context) status() Status {
	switch {
	case c.aborted:
		return Deferred
	case c.hasError():
		return Failed
	default:
		return Solved
	}
}

func (c *Context) hasError() bool {
	for _, m := range c.messages {
		if m.Level == Error {
			return true
		}
	}
	return false
}
