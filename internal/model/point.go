// Package model defines the data types that flow through the pipeline:
// chain points, records, and events.
package model

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Point identifies a position on the chain. The zero value is not a valid
// Point; use Origin() or NewPoint.
type Point struct {
	origin bool
	Slot   uint64
	Hash   []byte
}

// Origin returns the distinguished point before the first block.
func Origin() Point {
	return Point{origin: true}
}

// NewPoint builds a concrete (slot, hash) point. hash must be non-empty.
func NewPoint(slot uint64, hash []byte) (Point, error) {
	if len(hash) == 0 {
		return Point{}, errors.New("model: point hash must not be empty")
	}
	cp := make([]byte, len(hash))
	copy(cp, hash)
	return Point{Slot: slot, Hash: cp}, nil
}

// MustPoint is NewPoint but panics on error; for tests and static config.
func MustPoint(slot uint64, hash []byte) Point {
	p, err := NewPoint(slot, hash)
	if err != nil {
		panic(err)
	}
	return p
}

// IsOrigin reports whether p is the Origin point.
func (p Point) IsOrigin() bool {
	return p.origin
}

// Equal reports whether two points identify the same chain position.
func (p Point) Equal(other Point) bool {
	if p.origin || other.origin {
		return p.origin == other.origin
	}
	if p.Slot != other.Slot {
		return false
	}
	if len(p.Hash) != len(other.Hash) {
		return false
	}
	for i := range p.Hash {
		if p.Hash[i] != other.Hash[i] {
			return false
		}
	}
	return true
}

// Key returns a value suitable for use as a map key identifying this point
// by (slot, hash). Origin has its own distinct key.
func (p Point) Key() string {
	if p.origin {
		return "origin"
	}
	return fmt.Sprintf("%d:%s", p.Slot, hex.EncodeToString(p.Hash))
}

// String implements fmt.Stringer.
func (p Point) String() string {
	if p.origin {
		return "origin"
	}
	return fmt.Sprintf("(%d, %s)", p.Slot, hex.EncodeToString(p.Hash))
}

// HashHex returns the lowercase hex encoding of the point's hash, or the
// empty string for Origin.
func (p Point) HashHex() string {
	if p.origin {
		return ""
	}
	return hex.EncodeToString(p.Hash)
}

// pointJSON is the wire shape: "origin" or {slot, hash}.
type pointJSON struct {
	Slot uint64 `json:"slot"`
	Hash string `json:"hash"`
}

// MarshalJSON implements json.Marshaler per the ChainEvent JSON projection.
func (p Point) MarshalJSON() ([]byte, error) {
	if p.origin {
		return json.Marshal("origin")
	}
	return json.Marshal(pointJSON{Slot: p.Slot, Hash: hex.EncodeToString(p.Hash)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString != "origin" {
			return fmt.Errorf("model: unexpected point string %q", asString)
		}
		*p = Origin()
		return nil
	}

	var asStruct pointJSON
	if err := json.Unmarshal(data, &asStruct); err != nil {
		return fmt.Errorf("model: decode point: %w", err)
	}
	hash, err := hex.DecodeString(asStruct.Hash)
	if err != nil {
		return fmt.Errorf("model: decode point hash: %w", err)
	}
	np, err := NewPoint(asStruct.Slot, hash)
	if err != nil {
		return err
	}
	*p = np
	return nil
}

// Less orders two points by slot, with Origin sorting before everything
// else. Two non-origin points with equal slot are considered equal by Less;
// their hashes are not compared.
func (p Point) Less(other Point) bool {
	if p.origin {
		return !other.origin
	}
	if other.origin {
		return false
	}
	return p.Slot < other.Slot
}
