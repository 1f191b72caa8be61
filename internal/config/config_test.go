package config

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesBaseDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Chain.Preset)
	assert.Equal(t, "origin", cfg.Intersect.Strategy)
	assert.Equal(t, 20, cfg.Retries.MaxRetries)
}

func TestLoadEnvOverridesBase(t *testing.T) {
	t.Setenv("CHAINSTREAM_CHAIN_PRESET", "preview")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "preview", cfg.Chain.Preset)
}

func TestLoadExplicitFileOverridesBase(t *testing.T) {
	path := t.TempDir() + "/explicit.yaml"
	require.NoError(t, os.WriteFile(path, []byte("chain:\n  preset: preprod\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "preprod", cfg.Chain.Preset)
}

func TestValidateRequiresSourceAndSink(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())
	cfg.Source.Type = "mock"
	assert.Error(t, cfg.Validate())
	cfg.Sink.Type = "stdout"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownIntersectStrategy(t *testing.T) {
	cfg := &Config{Source: SourceConfig{Type: "mock"}, Sink: SinkConfig{Type: "stdout"}, Intersect: IntersectConfig{Strategy: "bogus"}}
	assert.Error(t, cfg.Validate())
}

func TestWriteSampleProducesTOML(t *testing.T) {
	cfg := &Config{
		Source: SourceConfig{Type: "mock"},
		Sink:   SinkConfig{Type: "stdout"},
		Chain:  ChainConfig{Preset: "mainnet"},
	}
	var buf bytes.Buffer
	require.NoError(t, cfg.WriteSample(&buf))
	assert.Contains(t, buf.String(), `Type = "mock"`)
	assert.Contains(t, buf.String(), `Preset = "mainnet"`)
}

func TestResolvePresetKnownAndUnknown(t *testing.T) {
	p, err := ResolvePreset(ChainConfig{Preset: "mainnet"})
	require.NoError(t, err)
	assert.EqualValues(t, 764824073, p.Magic)

	_, err = ResolvePreset(ChainConfig{Preset: "nope"})
	assert.Error(t, err)
}
