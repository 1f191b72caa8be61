package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/txpipe/chainstream/internal/model"
)

// FileRotate delivers each event as a line of newline-delimited JSON to a
// size-rotated log file, backed by gopkg.in/natefinch/lumberjack.v2, the
// same rotation library xlog's file handler uses.
type FileRotate struct {
	logger *lumberjack.Logger
}

// NewFileRotate opens (or creates) path and rotates it once it exceeds
// maxSizeMB, keeping maxBackups old copies.
func NewFileRotate(path string, maxSizeMB, maxBackups int) *FileRotate {
	return &FileRotate{logger: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}}
}

func (f *FileRotate) Deliver(_ context.Context, event model.ChainEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sink/filerotate: marshal event: %w", err)
	}
	if _, err := f.logger.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("sink/filerotate: write: %w", err)
	}
	return nil
}

func (f *FileRotate) Close() error { return f.logger.Close() }
