package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONIncludesServiceAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "triage", "warn", "json")

	logger.Info("document_processed")
	logger.Warn("classification_fallback", "email_id", "email1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "triage" || entry["msg"] != "classification_fallback" || entry["email_id"] != "email1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "cli", "debug", "text").Debug("batch_started", "documents", 3)
	if !strings.Contains(buf.String(), "msg=batch_started") || !strings.Contains(buf.String(), "service=cli") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
