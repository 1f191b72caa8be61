// Package xlog implements chainstream's structured logger: a thin wrapper
// around log/slog with a TTY-aware console handler (key=value text on a
// terminal, JSON otherwise; no ANSI colors are emitted) and an optional
// rotating file handler, built slog.Handler-based with
// NewTerminalHandler/JSONHandler-shaped constructors.
package xlog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DisplayMode is the parsed form of the display_mode setting. No terminal
// UI library is wired in, and the supervisor does not read DisplayMode:
// both values give the same structured-log output.
type DisplayMode int

const (
	DisplayPlain DisplayMode = iota
	DisplayTUI
)

// ParseDisplayMode maps a config string to a DisplayMode, defaulting to
// DisplayPlain for anything unrecognized.
func ParseDisplayMode(s string) DisplayMode {
	if s == "tui" {
		return DisplayTUI
	}
	return DisplayPlain
}

// New builds a *slog.Logger writing to stderr: slog's uncolored text format
// (through go-colorable) when stderr is a terminal, plain JSON lines
// otherwise (the same heuristic the
// teacher's terminal handler uses via mattn/go-isatty).
func New(level slog.Level) *slog.Logger {
	return slog.New(consoleHandler(os.Stderr, level))
}

// NewWithFileRotation builds a logger that writes to both the console
// handler and a size-rotated file (gopkg.in/natefinch/lumberjack.v2),
// fanned out via a slog.Handler that forwards every record to both.
func NewWithFileRotation(level slog.Level, path string, maxSizeMB, maxBackups int) *slog.Logger {
	fileWriter := &lumberjack.Logger{Filename: path, MaxSize: maxSizeMB, MaxBackups: maxBackups, Compress: true}
	return slog.New(fanOutHandler{
		consoleHandler(os.Stderr, level),
		slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: level}),
	})
}

func consoleHandler(w io.Writer, level slog.Level) slog.Handler {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.NewTextHandler(colorable.NewColorable(f), &slog.HandlerOptions{Level: level})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// fanOutHandler forwards every record to each wrapped handler in order.
type fanOutHandler []slog.Handler

func (f fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanOutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanOutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanOutHandler) WithGroup(name string) slog.Handler {
	out := make(fanOutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
