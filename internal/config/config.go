// Package config defines chainstream's configuration schema and loads it
// with spf13/viper's overlay model: a compiled-in base, a working-directory
// file, an explicit file, and environment variables, in that precedence.
package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// SourceConfig selects one upstream transport and its parameters.
type SourceConfig struct {
	Type     string `mapstructure:"type"` // grpc | websocket | cloud_object | mock
	Endpoint string `mapstructure:"endpoint"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// FilterConfig selects one filter kind and its parameters.
type FilterConfig struct {
	Type          string `mapstructure:"type"` // parse | split_block | split_tx | rollback_buffer | select | map_to_json | legacy_v1 | plugin
	MinDepth      int    `mapstructure:"min_depth"`
	SkipUncertain bool   `mapstructure:"skip_uncertain"`
	Predicate     map[string]any `mapstructure:"predicate"`
	Script        string `mapstructure:"script"`
}

// SinkConfig selects one sink and its parameters.
type SinkConfig struct {
	Type        string            `mapstructure:"type"` // stdout | file | webhook | sqs | pubsub
	Path        string            `mapstructure:"path"`
	MaxSizeMB   int               `mapstructure:"max_size_mb"`
	MaxBackups  int               `mapstructure:"max_backups"`
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	QueueURL    string            `mapstructure:"queue_url"`
	Region      string            `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	ProjectID   string            `mapstructure:"project_id"`
	TopicID     string            `mapstructure:"topic_id"`
}

// ChainConfig identifies the chain the pipeline follows, either by named
// preset or explicit genesis/magic values.
type ChainConfig struct {
	Preset string `mapstructure:"preset"` // mainnet | preprod | preview
	Magic  uint32 `mapstructure:"magic"`
}

// IntersectConfig is the static configuration for where the source resumes.
type IntersectConfig struct {
	Strategy string `mapstructure:"strategy"` // origin | tip | point | breadcrumbs
	Slot     uint64 `mapstructure:"slot"`
	HashHex  string `mapstructure:"hash_hex"`
	Fallback string `mapstructure:"fallback"`
}

// CursorConfig selects the breadcrumb persistence backend.
type CursorConfig struct {
	Type             string        `mapstructure:"type"` // memory | file | redis
	Path             string        `mapstructure:"path"`
	MaxBreadcrumbs   int           `mapstructure:"max_breadcrumbs"`
	FlushIntervalSec int           `mapstructure:"flush_interval_secs"`
	RedisURL         string        `mapstructure:"redis_url"`
	RedisKey         string        `mapstructure:"redis_key"`
}

// FlushInterval returns the configured flush interval as a time.Duration.
func (c CursorConfig) FlushInterval() time.Duration {
	if c.FlushIntervalSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.FlushIntervalSec) * time.Second
}

// FinalizeConfig is an optional stop condition for the supervisor.
type FinalizeConfig struct {
	UntilHash    string  `mapstructure:"until_hash"`
	MaxBlockSlot *uint64 `mapstructure:"max_block_slot"`
}

// RetriesConfig mirrors the stage retry policy knobs.
type RetriesConfig struct {
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffUnitMs    int     `mapstructure:"backoff_unit_ms"`
	BackoffFactor    float64 `mapstructure:"backoff_factor"`
	MaxBackoffMs     int     `mapstructure:"max_backoff_ms"`
	MemorySecs       int     `mapstructure:"memory_secs"`
}

// Config is the full pipeline configuration.
type Config struct {
	Source    SourceConfig     `mapstructure:"source"`
	Filters   []FilterConfig   `mapstructure:"filters"`
	Sink      SinkConfig       `mapstructure:"sink"`
	Chain     ChainConfig      `mapstructure:"chain"`
	Intersect IntersectConfig  `mapstructure:"intersect"`
	Cursor    CursorConfig     `mapstructure:"cursor"`
	Finalize  FinalizeConfig   `mapstructure:"finalize"`
	Retries   RetriesConfig    `mapstructure:"retries"`

	// DisplayMode is the "tui" or "plain" setting parsed by
	// xlog.ParseDisplayMode. The supervisor does not read it; its logging
	// cadence is the same in both modes. See internal/xlog.
	DisplayMode string `mapstructure:"display_mode"`
}

// baseDefaults is the compiled-in lowest-precedence layer in the
// overlay order (base file -> workdir file -> explicit file -> env).
const baseDefaults = `
chain:
  preset: mainnet
intersect:
  strategy: origin
cursor:
  type: memory
  max_breadcrumbs: 20
  flush_interval_secs: 10
retries:
  max_retries: 20
  backoff_unit_ms: 500
  backoff_factor: 2
  max_backoff_ms: 30000
  memory_secs: 900
display_mode: plain
`

// Load builds a Config by overlaying, in increasing precedence: the
// compiled-in base defaults, a file in the working directory named
// "chainstream.yaml", an explicit file at explicitPath (if non-empty), and
// environment variables prefixed CHAINSTREAM_ (e.g. CHAINSTREAM_SINK_URL
// overrides sink.url).
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBufferString(baseDefaults)); err != nil {
		return nil, fmt.Errorf("config: read base defaults: %w", err)
	}

	v.AddConfigPath(".")
	v.SetConfigName("chainstream")
	if err := v.MergeInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read working-directory config: %w", err)
		}
	}

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", explicitPath, err)
		}
	}

	v.SetEnvPrefix("CHAINSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// WriteSample writes the effective config as TOML, in the style of geth's
// own "dumpconfig" command: an operator can run chainstream dump-config,
// review the resolved values, and commit the result as a starting point
// for a hand-edited file. TOML (rather than the YAML chainstream itself
// loads) matches that teacher convention and keeps BurntSushi/toml, the
// teacher's config-dump library, exercised.
func (c *Config) WriteSample(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks the structural invariants that classify as a
// configuration error (exit code 2): missing required fields, nonsensical
// combinations.
func (c *Config) Validate() error {
	if c.Source.Type == "" {
		return fmt.Errorf("config: source.type is required")
	}
	if c.Sink.Type == "" {
		return fmt.Errorf("config: sink.type is required")
	}
	switch c.Intersect.Strategy {
	case "origin", "tip", "point", "breadcrumbs", "":
	default:
		return fmt.Errorf("config: intersect.strategy %q is invalid", c.Intersect.Strategy)
	}
	if c.Intersect.Strategy == "point" && c.Intersect.HashHex == "" {
		return fmt.Errorf("config: intersect.hash_hex is required for strategy=point")
	}
	switch c.Cursor.Type {
	case "memory", "file", "redis", "":
	default:
		return fmt.Errorf("config: cursor.type %q is invalid", c.Cursor.Type)
	}
	if c.Cursor.Type == "file" && c.Cursor.Path == "" {
		return fmt.Errorf("config: cursor.path is required for cursor.type=file")
	}
	if c.Cursor.Type == "redis" && c.Cursor.RedisURL == "" {
		return fmt.Errorf("config: cursor.redis_url is required for cursor.type=redis")
	}
	return nil
}
