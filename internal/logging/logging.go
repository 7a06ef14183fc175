// Package logging configures the process-wide slog logger and hands out
// component-tagged loggers that follow it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// Init installs a text or JSON handler writing to w (stderr when nil).
// levelStr is one of "debug", "info", "warn", "error"; format is "text" or
// "json". Unknown values are rejected so that typos in a config file do
// not silently change verbosity.
func Init(w io.Writer, levelStr, format string) error {
	l, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	level.Set(l)

	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// ParseLevel maps a level name to a slog.Level. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLevel changes the log level at runtime.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// For returns a logger tagged with component. It resolves slog.Default()
// on every call, so package-level loggers pick up Init and CaptureForTest.
func For(component string) *slog.Logger {
	return slog.New(&componentHandler{component: component})
}

type componentHandler struct {
	component string
	attrs     []slog.Attr
}

func (h *componentHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, l)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.String("component", h.component))
	r.AddAttrs(h.attrs...)
	return slog.Default().Handler().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &componentHandler{
		component: h.component,
		attrs:     append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// Groups are flattened; the store never nests log attributes.
func (h *componentHandler) WithGroup(string) slog.Handler {
	return h
}
