package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewRenamesStandardKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "poold", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("round rotated", "closed", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the debug threshold, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key, want := range map[string]any{"message": "round rotated", "severity": "INFO", "service": "poold", "env": "test", "closed": float64(3)} {
		if entry[key] != want {
			t.Fatalf("%s = %v, want %v", key, entry[key], want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("timestamp missing from %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMaskHeaders(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "poold", "", slog.LevelInfo).Info("telemetry", MaskHeaders(map[string]string{"authorization": "Bearer abc", "empty": ""}))
	out := buf.String()
	if strings.Contains(out, "abc") || !strings.Contains(out, RedactedValue) {
		t.Fatalf("header value leaked: %s", out)
	}
	if strings.Contains(out, `"env"`) {
		t.Fatalf("empty env should be omitted: %s", out)
	}
}

func TestMaskCredential(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"short":             RedactedValue,
		"pool-api-key-7f3a": RedactedValue + "7f3a",
	}
	for in, want := range cases {
		if got := MaskCredential(in); got != want {
			t.Fatalf("MaskCredential(%q) = %q, want %q", in, got, want)
		}
	}
}
