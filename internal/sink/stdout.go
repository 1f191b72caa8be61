package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/txpipe/chainstream/internal/model"
)

// Stdout delivers each event as a line of newline-delimited JSON to the
// given writer (ordinarily os.Stdout).
type Stdout struct {
	Writer io.Writer
}

func (s *Stdout) Deliver(_ context.Context, event model.ChainEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sink/stdout: marshal event: %w", err)
	}
	if _, err := s.Writer.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("sink/stdout: write: %w", err)
	}
	return nil
}

func (s *Stdout) Close() error { return nil }
