// Package printer formats command-line output with color.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/creachadair/pipenode/host"
	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a success message in green with a checkmark prefix.
func Success(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ "+format+"\n", a...)
}

// Warning prints a warning message in yellow.
func Warning(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "⚠️  "+format+"\n", a...)
}

// Error prints an error in red.
func Error(w io.Writer, err error) {
	red.Fprintf(w, "❌ Error: %v\n", err)
}

// Result prints the result of one node solution: its output, or a notice
// that it was deferred, followed by any runtime messages.
func Result(w io.Writer, r host.Result) {
	switch r.Status {
	case host.Solved:
		out := fmt.Sprint(r.Output)
		if strings.Contains(out, "\n") {
			out = "\n" + out
		}
		green.Fprintf(w, "[%s #%d] ", r.ID, r.Runs)
		fmt.Fprintln(w, out)
	case host.Deferred:
		cyan.Fprintf(w, "[%s #%d] deferred: waiting for data\n", r.ID, r.Runs)
	default:
		red.Fprintf(w, "[%s #%d] %s\n", r.ID, r.Runs, r.Status)
	}
	for _, m := range r.Messages {
		switch m.Level {
		case host.Error:
			red.Fprintf(w, "  %s\n", m)
		case host.Warning:
			yellow.Fprintf(w, "  %s\n", m)
		default:
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
}
