// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(os.Stderr)
	fn()
	return buf.String()
}

func decodeEntry(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return entry
}

func TestLogEntryShape(t *testing.T) {
	l := New("gateway")
	out := captureOutput(t, func() {
		l.Info("analyst", "req-1", "query accepted", map[string]interface{}{"tier": "ast"})
	})

	entry := decodeEntry(t, out)
	if entry.Level != INFO {
		t.Errorf("Level = %s, want INFO", entry.Level)
	}
	if entry.Component != "gateway" {
		t.Errorf("Component = %s", entry.Component)
	}
	if entry.Persona != "analyst" || entry.RequestID != "req-1" {
		t.Errorf("correlation fields = %q/%q", entry.Persona, entry.RequestID)
	}
	if entry.Fields["tier"] != "ast" {
		t.Errorf("Fields = %v", entry.Fields)
	}
	if entry.Timestamp == "" {
		t.Error("Timestamp empty")
	}
}

func TestRejectionAddsReasonCode(t *testing.T) {
	l := New("gateway")
	out := captureOutput(t, func() {
		l.Rejection("analyst", "req-2", "script rejected", "forbidden_module", nil)
	})

	entry := decodeEntry(t, out)
	if entry.Level != WARN {
		t.Errorf("Level = %s, want WARN", entry.Level)
	}
	if entry.Fields["reason_code"] != "forbidden_module" {
		t.Errorf("Fields = %v", entry.Fields)
	}
}

func TestErrorWithCode(t *testing.T) {
	l := New("gateway")
	out := captureOutput(t, func() {
		l.ErrorWithCode("", "req-3", "execution failed", 500, nil, nil)
	})

	entry := decodeEntry(t, out)
	if entry.Level != ERROR {
		t.Errorf("Level = %s, want ERROR", entry.Level)
	}
	if entry.Fields["status_code"] != float64(500) {
		t.Errorf("Fields = %v", entry.Fields)
	}
}

func TestLevels(t *testing.T) {
	l := New("gateway")
	tests := []struct {
		level LogLevel
		fn    func()
	}{
		{DEBUG, func() { l.Debug("", "", "d", nil) }},
		{INFO, func() { l.Info("", "", "i", nil) }},
		{WARN, func() { l.Warn("", "", "w", nil) }},
		{ERROR, func() { l.Error("", "", "e", nil) }},
	}
	for _, tt := range tests {
		out := captureOutput(t, tt.fn)
		if entry := decodeEntry(t, out); entry.Level != tt.level {
			t.Errorf("Level = %s, want %s", entry.Level, tt.level)
		}
	}
}
