package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"comitebot/pkg/config"
)

func decodeEntry(t *testing.T, out *bytes.Buffer) LogEntry {
	t.Helper()

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}
	return entry
}

func TestLoggerJSONEntryShape(t *testing.T) {
	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("component", "conversation.controller").Info("Message forwarded", "request_id", "42", "ok", true, "error", errors.New("boom"))

	entry := decodeEntry(t, &out)
	if entry.Level != "info" {
		t.Fatalf("level = %q, want %q", entry.Level, "info")
	}
	if entry.Message != "Message forwarded" {
		t.Fatalf("message = %q, want %q", entry.Message, "Message forwarded")
	}
	if entry.Component != "conversation.controller" {
		t.Fatalf("component = %q, want %q", entry.Component, "conversation.controller")
	}
	if entry.Timestamp == "" {
		t.Fatal("expected timestamp")
	}
	if got := entry.Fields["request_id"]; got != "42" {
		t.Fatalf("fields.request_id = %v, want %q", got, "42")
	}
	if got := entry.Fields["ok"]; got != true {
		t.Fatalf("fields.ok = %v, want true", got)
	}
	if got := entry.Fields["error"]; got != "boom" {
		t.Fatalf("fields.error = %v, want %q", got, "boom")
	}
}

func TestLoggerJSONGroupsFlattenKeys(t *testing.T) {
	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.WithGroup("session").Info("Opened", "user_id", 7)

	entry := decodeEntry(t, &out)
	if got := entry.Fields["session.user_id"]; got != float64(7) {
		t.Fatalf("fields[session.user_id] = %v, want 7", got)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Ignored")
	if got := strings.TrimSpace(out.String()); got != "" {
		t.Fatalf("expected no output for info, got %q", got)
	}

	log.Error("Kept")
	if got := strings.TrimSpace(out.String()); got == "" {
		t.Fatal("expected output for error")
	}
}

func TestLoggerDefaultsToTextFormat(t *testing.T) {
	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Default format")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format by default, got %q", line)
	}
}

func TestLoggerLogfmtFormat(t *testing.T) {
	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "logfmt"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Session opened", "user_id", 7)
	line := strings.TrimSpace(out.String())
	if !strings.Contains(line, "user_id=7") {
		t.Fatalf("expected logfmt key=value output, got %q", line)
	}
}

func TestLoggerRejectsUnknownSettings(t *testing.T) {
	if _, err := newWithWriter(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := newWithWriter(config.LoggingConfig{Level: "verbose"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unsupported level")
	}
}
