package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitText(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	if err := Init(&buf, "info", "text"); err != nil {
		t.Fatal(err)
	}
	For("store").Info("opened", "path", "/tmp/x")
	out := buf.String()
	if !strings.Contains(out, "msg=opened") || !strings.Contains(out, "component=store") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestInitJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	if err := Init(&buf, "debug", "json"); err != nil {
		t.Fatal(err)
	}
	For("shell").Debug("dispatch", "cmd", "get")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if m["component"] != "shell" || m["cmd"] != "get" {
		t.Fatalf("unexpected JSON record: %v", m)
	}
	SetLevel(slog.LevelInfo)
}

func TestInitRejectsUnknown(t *testing.T) {
	if err := Init(nil, "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := Init(nil, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
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
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"  Error  ", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestComponentHandlerEnabled(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	if err := Init(&bytes.Buffer{}, "warn", "text"); err != nil {
		t.Fatal(err)
	}
	defer SetLevel(slog.LevelInfo)

	h := &componentHandler{component: "test"}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should not be enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestForWithAttrs(t *testing.T) {
	c := CaptureForTest()
	defer c.Restore()

	For("logfile").With("path", "/data/kv.log").Info("appended")

	v, ok := c.Attr("appended", "path")
	if !ok || v.String() != "/data/kv.log" {
		t.Fatalf("path attr = %v (found %v)", v, ok)
	}
	v, ok = c.Attr("appended", "component")
	if !ok || v.String() != "logfile" {
		t.Fatalf("component attr = %v (found %v)", v, ok)
	}
}

func TestCaptureForTest(t *testing.T) {
	c := CaptureForTest()
	defer c.Restore()

	slog.Info("hello")
	slog.Warn("warning message")
	slog.Debug("debug detail")

	if n := len(c.Records()); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}
	if !c.Has(slog.LevelInfo, "hello") {
		t.Error("should have info 'hello'")
	}
	if c.Has(slog.LevelError, "hello") {
		t.Error("should not match error level")
	}
	if c.Count(slog.LevelWarn) != 1 || c.Count(slog.LevelDebug) != 1 {
		t.Errorf("warn=%d debug=%d, want 1 and 1", c.Count(slog.LevelWarn), c.Count(slog.LevelDebug))
	}
	if _, ok := c.Attr("nonexistent", "k"); ok {
		t.Error("Attr should miss on unknown message")
	}
}

func TestCaptureRestore(t *testing.T) {
	prev := slog.Default()
	c := CaptureForTest()
	c.Restore()
	if slog.Default() != prev {
		t.Error("default logger not restored")
	}
}
