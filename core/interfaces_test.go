package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultPanicHandler(t *testing.T) {
	// Given: A DefaultPanicHandler writing JSON through zerolog
	var buf bytes.Buffer
	handler := &DefaultPanicHandler{Logger: NewZerologLogger(zerolog.New(&buf))}

	// When: HandlePanic is called
	handler.HandlePanic(context.Background(), "main", -1, "test panic", []byte("stack trace"))

	// Then: One error line names the runner and the panic value
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if line["level"] != "error" || line["runner"] != "main" || line["panic"] != "test panic" {
		t.Errorf("log line = %v", line)
	}
}

func TestNilMetrics(t *testing.T) {
	// Given: A NilMetrics
	var metrics Metrics = &NilMetrics{}

	// When: All methods are called
	metrics.RecordWorkloadDuration("default", time.Millisecond)
	metrics.RecordDrain("default", 3, 2*time.Millisecond, false)
	metrics.RecordQueueDepth("default", 10)
	metrics.RecordTaskPanic("main", "panic")
	metrics.RecordTaskRejected("main", "closed")

	// Then: No panic should occur (all methods are no-ops)
}

func TestDefaultLogger_FieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Info("drained",
		F("queue", "loop"),
		F("executed", 3),
		F("over", true),
		F("elapsed", 2*time.Millisecond),
		F("error", errors.New("boom")),
		F("stats", QueueStats{Name: "loop"}),
	)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if line["queue"] != "loop" || line["executed"] != float64(3) || line["over"] != true || line["error"] != "boom" {
		t.Errorf("log line = %v", line)
	}
	if _, ok := line["stats"].(map[string]any); !ok {
		t.Errorf("stats field = %T, want object", line["stats"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", F("queue", "default"))

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("console output = %q", out)
	}
}
