package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.Info("daw connected", "transport", "tcp", "port", 9877)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "daw connected" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["transport"] != "tcp" {
		t.Errorf("transport = %v", record["transport"])
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "text", Output: &buf})

	logger.Debug("chunk received", "index", 3)

	if !strings.Contains(buf.String(), "chunk received") {
		t.Errorf("text output missing message: %q", buf.String())
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info record emitted at warn level: %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn record suppressed at warn level")
	}
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "verbose", Format: "json", Output: &buf})

	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be enabled for invalid level string")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should stay disabled for invalid level string")
	}
}
