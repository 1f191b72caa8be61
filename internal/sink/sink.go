// Package sink implements the pipeline's terminal stage: delivering
// ChainEvents to an external system. Each concrete family (stdout, file,
// webhook, cloud queue) implements Sink; Stage adapts any Sink into a
// stage.Worker.
package sink

import (
	"context"
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// Sink delivers one ChainEvent to an external system. Implementations
// should treat Deliver as synchronous; retry/backoff is the enclosing
// stage.Worker's job (via WorkerError classification), not the Sink's.
type Sink interface {
	Deliver(ctx context.Context, event model.ChainEvent) error
	Close() error
}

// Stage adapts a Sink into a stage.Worker, consuming events from In until
// it closes or the context is canceled.
type Stage struct {
	In   stage.InputPort
	Sink Sink
}

func (s *Stage) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (s *Stage) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-s.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg.Event), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (s *Stage) Execute(ctx context.Context, unit any) *stage.WorkerError {
	event := unit.(model.ChainEvent)
	if err := s.Sink.Deliver(ctx, event); err != nil {
		return stage.Retry(fmt.Errorf("sink: deliver: %w", err))
	}
	return nil
}

func (s *Stage) Teardown(context.Context) {
	_ = s.Sink.Close()
}
