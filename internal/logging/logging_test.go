package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestInitLoggerToJSON verifies JSON output and level filtering.
func TestInitLoggerToJSON(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatJSON)
	defer InitLogger(LevelInfo, FormatJSON)

	Debug("should be filtered")
	Info("hello", "key", "value")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("debug message not filtered at info level")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if entry["msg"] != "hello" || entry["key"] != "value" {
		t.Errorf("entry = %v", entry)
	}
}

// TestOperationLogging verifies the common operation fields at debug
// level.
func TestOperationLogging(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelDebug, FormatJSON)
	defer InitLogger(LevelInfo, FormatJSON)

	Operation("convert", "json->toml", 5*time.Millisecond, "operation_id", "abc123")

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "engine_operation" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["operation"] != "convert" || entry["format"] != "json->toml" {
		t.Errorf("entry = %v", entry)
	}
	if entry["operation_id"] != "abc123" {
		t.Errorf("operation_id = %v", entry["operation_id"])
	}
}

// TestOperationIDContext verifies context round-trips and logger
// attachment.
func TestOperationIDContext(t *testing.T) {
	ctx := WithOperationID(context.Background(), "op-42")
	if got := GetOperationID(ctx); got != "op-42" {
		t.Errorf("GetOperationID = %q", got)
	}
	if got := GetOperationID(context.Background()); got != "" {
		t.Errorf("GetOperationID(empty) = %q", got)
	}

	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatJSON)
	defer InitLogger(LevelInfo, FormatJSON)

	InfoContext(ctx, "with id")
	if !strings.Contains(buf.String(), "op-42") {
		t.Errorf("operation id missing from log: %s", buf.String())
	}
}
