package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"Warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("low-severity entries leaked: %s", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "key=value") {
		t.Fatalf("warn entry missing: %s", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: "json", Output: &buf})

	logger.Info("started", "run_id", "r-1")

	out := buf.String()
	if !strings.Contains(out, `"msg":"started"`) || !strings.Contains(out, `"run_id":"r-1"`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestWith_AttachesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: "text", Output: &buf})

	With(logger, "component", "router").Info("decided")
	if !strings.Contains(buf.String(), "component=router") {
		t.Fatalf("attribute missing: %s", buf.String())
	}

	// NoOp loggers pass through unchanged.
	if _, ok := With(NoOpLogger{}, "k", "v").(NoOpLogger); !ok {
		t.Fatal("expected NoOpLogger to pass through With")
	}
}
