package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/stage"
)

// Plugin runs a user-supplied JavaScript function over each event's JSON
// projection, a scriptable escape hatch for operators who need to reshape
// records without a Go recompile, using github.com/dop251/goja as an
// embeddable script runtime in place of a WASM or subprocess sandbox.
//
// The script must define a top-level function `apply(event)` that returns
// either a replacement value (forwarded as a GenericJSON record) or null
// (drops the event).
type Plugin struct {
	In  stage.InputPort
	Out stage.OutputPort

	Script string

	vm *goja.Runtime
	fn goja.Callable
}

func (p *Plugin) Bootstrap(context.Context) *stage.WorkerError {
	vm := goja.New()
	if _, err := vm.RunString(p.Script); err != nil {
		return stage.Panic(fmt.Errorf("filter/plugin: compile script: %w", err))
	}
	fnValue := vm.Get("apply")
	if fnValue == nil || goja.IsUndefined(fnValue) {
		return stage.Panic(fmt.Errorf("filter/plugin: script does not define an apply(event) function"))
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return stage.Panic(fmt.Errorf("filter/plugin: apply is not callable"))
	}
	p.vm = vm
	p.fn = fn
	return nil
}

func (p *Plugin) Schedule(ctx context.Context) (stage.WorkSchedule, *stage.WorkerError) {
	select {
	case msg, ok := <-p.In:
		if !ok {
			return stage.Done(), nil
		}
		return stage.Unit(msg), nil
	case <-ctx.Done():
		return stage.Done(), nil
	}
}

func (p *Plugin) Execute(ctx context.Context, unit any) *stage.WorkerError {
	msg := unit.(stage.Message)
	ev := msg.Event

	if ev.Kind == model.EventReset {
		return sendOrClosed(ctx, p.Out, msg)
	}

	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return stage.Panic(fmt.Errorf("filter/plugin: marshal event: %w", err))
	}

	var asInterface any
	if err := json.Unmarshal(eventJSON, &asInterface); err != nil {
		return stage.Panic(fmt.Errorf("filter/plugin: decode event json: %w", err))
	}

	result, err := p.fn(goja.Undefined(), p.vm.ToValue(asInterface))
	if err != nil {
		return stage.Restart(fmt.Errorf("filter/plugin: script execution failed: %w", err))
	}
	if goja.IsNull(result) || goja.IsUndefined(result) {
		return nil
	}

	out, err := json.Marshal(result.Export())
	if err != nil {
		return stage.Panic(fmt.Errorf("filter/plugin: marshal script result: %w", err))
	}

	ev.Record = model.NewGenericJSONRecord(out)
	return sendOrClosed(ctx, p.Out, stage.Message{Event: ev})
}

func (p *Plugin) Teardown(context.Context) {}
