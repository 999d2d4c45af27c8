package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWithChannel(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "debug")

	WithChannel("listener", "alpha").Debug("bound")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Unmarshal log record %q: %v", buf.String(), err)
	}
	if rec["component"] != "listener" || rec["channel"] != "alpha" || rec["msg"] != "bound" {
		t.Errorf("Log record: got %v", rec)
	}
}
