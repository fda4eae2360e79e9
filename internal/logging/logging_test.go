package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("submission reconciled", "submission_id", 7)

	output := buf.String()
	if !strings.Contains(output, "submission reconciled") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "submission_id=7") {
		t.Errorf("expected 'submission_id=7' in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "JSON", &buf)

	logger.Info("phase complete", "phase", "TESTING")

	output := buf.String()
	if !strings.Contains(output, `"msg":"phase complete"`) {
		t.Errorf("expected JSON msg field in output, got: %s", output)
	}
	if !strings.Contains(output, `"phase":"TESTING"`) {
		t.Errorf("expected JSON phase field in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetup_AuditFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	logger, closer, err := Setup(Options{Level: "warn", Format: "text", AuditFile: path}, &console)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	child := logger.With("component", "assess")
	child.Debug("dropped everywhere")
	child.Info("phase complete", "submission_id", 3)
	child.Warn("careful")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if strings.Contains(console.String(), "phase complete") {
		t.Errorf("console should filter INFO at WARN level: %s", console.String())
	}
	if !strings.Contains(console.String(), "careful") {
		t.Errorf("console missing WARN record: %s", console.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	audit := string(data)
	if !strings.Contains(audit, `"msg":"phase complete"`) || !strings.Contains(audit, `"component":"assess"`) {
		t.Errorf("audit log missing INFO record with attrs: %s", audit)
	}
	if strings.Contains(audit, "dropped everywhere") {
		t.Errorf("audit log should not contain DEBUG records: %s", audit)
	}
}

func TestSetup_NoAuditFile(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := Setup(Options{Level: "debug"}, &console)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closer.Close()
	logger.Debug("hello")
	if !strings.Contains(console.String(), "hello") {
		t.Errorf("expected debug output, got: %s", console.String())
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled")
	}
}
