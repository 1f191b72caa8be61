package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// MapJSON rewrites every Apply/Undo event's record into a GenericJSON
// record holding the record's own JSON projection. It is typically the
// last filter before a sink that wants a stable on-the-wire shape
// regardless of upstream record variant.
type MapJSON struct {
	In  stage.InputPort
	Out stage.OutputPort
}

func (m *MapJSON) Bootstrap(context.Context) *stage.WorkerError { return nil }

func (m *MapJSON) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-m.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (m *MapJSON) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	if ev.Kind != model.EventReset {
		raw, err := json.Marshal(ev.Record)
		if err != nil {
			return stage.Panic(fmt.Errorf("filter/mapjson: %w", err))
		}
		ev.Record = model.NewGenericJSONRecord(raw)
	}

	return sendOrClosed(ctx, m.Out, stage.Message{Event: ev})
}

func (m *MapJSON) Teardown(context.Context) {}
