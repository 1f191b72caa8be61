// Command chainstream runs the chain-follower pipeline described by a
// chainstream.yaml configuration: a source stage negotiates an
// intersection with an upstream chain, events flow through a configured
// filter chain, and land on a sink, with a cursor stage persisting
// breadcrumbs alongside for resumable restarts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/txpipe/chainstream/internal/breadcrumbs"
	"github.com/txpipe/chainstream/internal/config"
	"github.com/txpipe/chainstream/internal/cursor"
	"github.com/txpipe/chainstream/internal/supervisor"
	"github.com/txpipe/chainstream/internal/xlog"
)

// Exit codes: clean shutdown, fatal pipeline failure, and configuration
// error are distinguished so process supervisors (systemd, Kubernetes)
// can tell a bad deploy from a transient crash.
const (
	exitClean         = 0
	exitFatal         = 1
	exitConfigInvalid = 2
)

func main() {
	app := &cli.App{
		Name:  "chainstream",
		Usage: "follow a chain, filter its events, and deliver them to a sink",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to an explicit config file, highest precedence below env vars"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug | info | warn | error"},
		},
		Commands: []*cli.Command{
			daemonCommand,
			validateConfigCommand,
			dumpConfigCommand,
			dumpBreadcrumbsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		if ce, ok := err.(*configError); ok {
			fmt.Fprintln(os.Stderr, ce.Error())
			os.Exit(exitConfigInvalid)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
}

// configError marks an error as a configuration problem (exit code 2)
// rather than a runtime/fatal one (exit code 1).
type configError struct{ err error }

func (c *configError) Error() string { return c.err.Error() }
func (c *configError) Unwrap() error { return c.err }

var daemonCommand = &cli.Command{
	Name:  "daemon",
	Usage: "run the pipeline until finalization, cancellation, or fatal error",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "if set, serve Prometheus metrics at this address (e.g. :9186)"},
		&cli.DurationFlag{Name: "poll-interval", Value: 5 * time.Second, Usage: "how often to mirror stage snapshots into metrics/logs"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger := newLogger(c)
		sup, err := supervisor.Build(cfg, logger)
		if err != nil {
			return &configError{fmt.Errorf("chainstream: build pipeline: %w", err)}
		}

		if addr := c.String("metrics-addr"); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", sup.Metrics().Handler())
			srv := &http.Server{Addr: addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
			defer srv.Close()
		}

		ctx, cancel := context.WithCancel(c.Context)
		defer cancel()

		logger.Info("chainstream starting", "source", cfg.Source.Type, "sink", cfg.Sink.Type, "filters", len(cfg.Filters))
		if err := sup.Run(ctx, c.Duration("poll-interval")); err != nil {
			return fmt.Errorf("chainstream: pipeline failed: %w", err)
		}
		logger.Info("chainstream stopped cleanly")
		return nil
	},
}

var validateConfigCommand = &cli.Command{
	Name:  "validate-config",
	Usage: "load and validate configuration without starting the pipeline",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if _, err := config.ResolvePreset(cfg.Chain); err != nil {
			return &configError{fmt.Errorf("chainstream: %w", err)}
		}
		fmt.Fprintln(c.App.Writer, "config OK")
		return nil
	},
}

var dumpConfigCommand = &cli.Command{
	Name:  "dump-config",
	Usage: "print the fully-resolved configuration as TOML, for review or as a starting file",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		return cfg.WriteSample(c.App.Writer)
	},
}

var dumpBreadcrumbsCommand = &cli.Command{
	Name:      "dump-breadcrumbs",
	Usage:     "print the persisted breadcrumbs as JSON, most-recent-first",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return &configError{fmt.Errorf("chainstream: dump-breadcrumbs requires a file path argument")}
		}

		store := &cursor.FileStore{Path: path}
		data, err := store.Load(c.Context)
		if err != nil {
			return fmt.Errorf("chainstream: read breadcrumbs: %w", err)
		}
		if len(data) == 0 {
			fmt.Fprintln(c.App.Writer, "[]")
			return nil
		}

		crumbs, err := breadcrumbs.Load(0, data)
		if err != nil {
			return &configError{fmt.Errorf("chainstream: parse breadcrumbs: %w", err)}
		}

		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(crumbs.MostRecentFirst())
	},
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, &configError{fmt.Errorf("chainstream: load config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &configError{fmt.Errorf("chainstream: %w", err)}
	}
	return cfg, nil
}

func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return xlog.New(level)
}
