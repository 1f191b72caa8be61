package config

import "fmt"

// ChainPreset carries the well-known genesis/magic constants for one named
// chain, following pallas-network's chain preset table.
type ChainPreset struct {
	Name      string
	Magic     uint32
	NetworkID int
}

var chainPresets = map[string]ChainPreset{
	"mainnet": {Name: "mainnet", Magic: 764824073, NetworkID: 1},
	"preprod": {Name: "preprod", Magic: 1, NetworkID: 0},
	"preview": {Name: "preview", Magic: 2, NetworkID: 0},
}

// ResolvePreset looks up a named chain preset, or builds one from the
// explicit magic value when cfg.Preset is empty (NetworkID is left 0).
func ResolvePreset(cfg ChainConfig) (ChainPreset, error) {
	if cfg.Preset == "" {
		return ChainPreset{Name: "custom", Magic: cfg.Magic}, nil
	}
	preset, ok := chainPresets[cfg.Preset]
	if !ok {
		return ChainPreset{}, fmt.Errorf("config: unknown chain preset %q", cfg.Preset)
	}
	return preset, nil
}
