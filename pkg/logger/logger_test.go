package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWriterRespectsLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	lg := NewWriter(&buf, "warn")
	lg.Info("hidden")
	lg.Warn("shown", "member", "server1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"member":"server1"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestNewWriterEnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	NewWriter(&buf, "error").Debug("trace")
	if !strings.Contains(buf.String(), `"msg":"trace"`) {
		t.Fatalf("LOG_LEVEL did not override level: %q", buf.String())
	}
}
