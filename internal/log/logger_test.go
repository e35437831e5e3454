package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/appforge/appforge/internal/errors"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Info("batch committed", "batch", 2, "nodes", 4)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "batch committed" {
		t.Errorf("msg = %v, want batch committed", entry["msg"])
	}
	if entry["batch"] != float64(2) {
		t.Errorf("batch = %v, want 2", entry["batch"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Debug("not shown")
	logger.Info("not shown either")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "not shown") {
		t.Errorf("output should not contain filtered levels: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("output should contain warn entry: %q", out)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	fe := errors.NewBatchIncompleteError(1, []string{"node-a"})
	logger.WithError(fe).Error("run halted")

	out := buf.String()
	if !strings.Contains(out, "BATCH-001") {
		t.Errorf("output should carry the error code: %q", out)
	}
}

func TestEnabled(t *testing.T) {
	logger := New(Config{Level: LevelError, Format: FormatJSON, Output: &bytes.Buffer{}})
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled at error level")
	}
	if !logger.Enabled(context.Background(), LevelError) {
		t.Error("error should be enabled at error level")
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	if ParseLevel("warn") != LevelWarn {
		t.Error("ParseLevel(warn)")
	}
	if ParseLevel("bogus") != LevelInfo {
		t.Error("ParseLevel should default to info")
	}
	if ParseFormat("text") != FormatText {
		t.Error("ParseFormat(text)")
	}
	if ParseFormat("anything") != FormatJSON {
		t.Error("ParseFormat should default to json")
	}
}
