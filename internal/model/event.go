package model

import (
	"encoding/json"
	"fmt"
)

// EventKind tags the active variant of a ChainEvent.
type EventKind int

const (
	EventApply EventKind = iota
	EventUndo
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventApply:
		return "apply"
	case EventUndo:
		return "undo"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ChainEvent is the pipeline's unit of flow: Apply(point, record),
// Undo(point, record), or Reset(point). Adjacent stages agree on the
// ordering of these three kinds as they flow through ports.
type ChainEvent struct {
	Kind   EventKind
	Point  Point
	Record Record // zero value for Reset
}

// Apply constructs an Apply event.
func Apply(p Point, r Record) ChainEvent { return ChainEvent{Kind: EventApply, Point: p, Record: r} }

// Undo constructs an Undo event. r may be the zero Record if the
// upstream did not ship one.
func Undo(p Point, r Record) ChainEvent { return ChainEvent{Kind: EventUndo, Point: p, Record: r} }

// Reset constructs a Reset event.
func Reset(p Point) ChainEvent { return ChainEvent{Kind: EventReset, Point: p} }

// IsPointBearing reports whether this event carries a point that the cursor
// should track (true for all three kinds today, but kept explicit since the
// cursor tap applies to every stage that emits events carrying points).
func (e ChainEvent) IsPointBearing() bool { return true }

type eventJSON struct {
	Event  string          `json:"event"`
	Point  Point           `json:"point"`
	Record json.RawMessage `json:"record,omitempty"`
}

// MarshalJSON implements the ChainEvent JSON projection.
func (e ChainEvent) MarshalJSON() ([]byte, error) {
	out := eventJSON{Point: e.Point}
	switch e.Kind {
	case EventApply:
		out.Event = "apply"
	case EventUndo:
		out.Event = "undo"
	case EventReset:
		out.Event = "reset"
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("model: chain event has unknown kind %d", e.Kind)
	}
	recJSON, err := json.Marshal(e.Record)
	if err != nil {
		return nil, fmt.Errorf("model: marshal event record: %w", err)
	}
	out.Record = recJSON
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for the point and event kind;
// the record is left as raw JSON in Record.JSON (KindGenericJSON) since the
// wire projection is lossy for raw/parsed variants by design.
func (e *ChainEvent) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode chain event: %w", err)
	}
	switch raw.Event {
	case "apply":
		e.Kind = EventApply
	case "undo":
		e.Kind = EventUndo
	case "reset":
		e.Kind = EventReset
		e.Point = raw.Point
		e.Record = Record{}
		return nil
	default:
		return fmt.Errorf("model: unknown chain event kind %q", raw.Event)
	}
	e.Point = raw.Point
	e.Record = NewGenericJSONRecord(raw.Record)
	return nil
}
