package xlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDisplayMode(t *testing.T) {
	assert.Equal(t, DisplayTUI, ParseDisplayMode("tui"))
	assert.Equal(t, DisplayPlain, ParseDisplayMode("plain"))
	assert.Equal(t, DisplayPlain, ParseDisplayMode("anything-else"))
}

func TestFanOutHandlerForwardsToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	handler := fanOutHandler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}
	logger := slog.New(handler)
	logger.Info("hello", "k", "v")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "hello")
}

func TestFanOutHandlerEnabledAggregates(t *testing.T) {
	handler := fanOutHandler{
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	assert.True(t, handler.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug-1))
}
