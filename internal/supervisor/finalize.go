package supervisor

import (
	"bytes"
	"encoding/hex"

	"github.com/txpipe/chainstream/internal/config"
	"github.com/txpipe/chainstream/internal/model"
)

// FinalizeCondition evaluates the optional stop condition
// (`finalize: {until_hash?, max_block_slot?}`) that lets a daemon run
// exit cleanly once it reaches a target point instead of following
// the chain indefinitely.
type FinalizeCondition struct {
	untilHash    []byte
	maxBlockSlot *uint64
}

// NewFinalizeCondition builds a FinalizeCondition from config. A zero-value
// FinalizeCondition (no fields set) never finalizes.
func NewFinalizeCondition(cfg config.FinalizeConfig) (FinalizeCondition, error) {
	var fc FinalizeCondition
	if cfg.UntilHash != "" {
		hash, err := hex.DecodeString(cfg.UntilHash)
		if err != nil {
			return FinalizeCondition{}, err
		}
		fc.untilHash = hash
	}
	fc.maxBlockSlot = cfg.MaxBlockSlot
	return fc, nil
}

// Reached reports whether ev satisfies the configured stop condition.
func (f FinalizeCondition) Reached(ev model.ChainEvent) bool {
	if !ev.IsPointBearing() || ev.Point.IsOrigin() {
		return false
	}
	if f.untilHash != nil && bytes.Equal(ev.Point.Hash, f.untilHash) {
		return true
	}
	if f.maxBlockSlot != nil && ev.Point.Slot >= *f.maxBlockSlot {
		return true
	}
	return false
}

// Active reports whether any stop condition is configured at all.
func (f FinalizeCondition) Active() bool {
	return f.untilHash != nil || f.maxBlockSlot != nil
}
