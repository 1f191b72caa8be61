// Package supervisor wires the source, filter, sink, and cursor stages
// into a running pipeline: it owns their tethers, drives orderly shutdown,
// and evaluates the optional finalize condition.
package supervisor

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/txpipe/chainstream/internal/breadcrumbs"
	"github.com/txpipe/chainstream/internal/chain"
	"github.com/txpipe/chainstream/internal/chainmetrics"
	"github.com/txpipe/chainstream/internal/config"
	"github.com/txpipe/chainstream/internal/cursor"
	"github.com/txpipe/chainstream/internal/filter"
	"github.com/txpipe/chainstream/internal/model"
	"github.com/txpipe/chainstream/internal/predicate"
	"github.com/txpipe/chainstream/internal/sink"
	"github.com/txpipe/chainstream/internal/source"
	"github.com/txpipe/chainstream/internal/stage"
)

// pendingStage is a (name, tether, worker) triple assembled by Build and
// spawned by Run.
type pendingStage struct {
	name   string
	tether *stage.Tether
	worker stage.Worker
}

// Supervisor owns every stage in one pipeline instance, in source-to-sink
// order, plus the cursor stage running alongside them.
type Supervisor struct {
	pending []pendingStage
	metrics *chainmetrics.Registry
	log     *slog.Logger

	shutdownOnce sync.Once
	cancel       context.CancelFunc
}

// Build assembles a full pipeline from configuration: source -> filters ->
// tap (cursor feed + finalize check) -> sink, plus the cursor stage
// running alongside. Only the "mock" source and the "stdout"/"file"/
// "webhook"/"sqs" sinks are constructible purely from Config (the SQS sink
// resolves its own AWS config); grpc/ws/cloud_object transports and the
// pubsub sink need a live client (gRPC conn, GCP SDK client) that Build has
// no way to obtain without performing real network setup, so callers
// needing those construct source.Worker/sink.Stage directly and skip Build.
// See DESIGN.md.
func Build(cfg *config.Config, logger *slog.Logger) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sup := &Supervisor{metrics: chainmetrics.NewRegistry(), log: logger}

	finalizeCond, err := NewFinalizeCondition(cfg.Finalize)
	if err != nil {
		return nil, fmt.Errorf("supervisor: finalize config: %w", err)
	}

	cursorStore, err := buildCursorStore(cfg.Cursor)
	if err != nil {
		return nil, err
	}
	track := make(cursor.TrackPort, 4096)
	cur := &cursor.Cursor{Track: track, FlushEvery: cfg.Cursor.FlushInterval(), Store: cursorStore, MaxBreadcrumbs: cfg.Cursor.MaxBreadcrumbs}
	sup.addStage("cursor", stage.NewTether("cursor"), cur)

	transport, intersectCfg, err := buildSource(context.Background(), cfg, cursorStore)
	if err != nil {
		return nil, err
	}
	sinkImpl, err := buildSink(context.Background(), cfg.Sink)
	if err != nil {
		return nil, err
	}

	out, in := stage.NewPort(stage.DefaultPortCapacity)
	sourceTether := stage.NewTether("source")
	sup.addStage("source", sourceTether, source.New(transport, intersectCfg, out, sourceTether))

	chainEnd := in
	for i, fc := range cfg.Filters {
		fOut, fIn := stage.NewPort(stage.DefaultPortCapacity)
		name := fmt.Sprintf("filter[%d]:%s", i, fc.Type)
		worker, err := buildFilter(fc, chainEnd, fOut)
		if err != nil {
			return nil, err
		}
		sup.addStage(name, stage.NewTether(name), worker)
		chainEnd = fIn
	}

	tapOut, tapIn := stage.NewPort(stage.DefaultPortCapacity)
	tapWorker := &tap{In: chainEnd, Out: tapOut, Track: track, finalize: finalizeCond, onFinalize: sup.TriggerShutdown}
	sup.addStage("tap", stage.NewTether("tap"), tapWorker)

	sup.addStage("sink", stage.NewTether("sink"), &sink.Stage{In: tapIn, Sink: sinkImpl})

	return sup, nil
}

func (s *Supervisor) addStage(name string, tether *stage.Tether, worker stage.Worker) {
	s.pending = append(s.pending, pendingStage{name: name, tether: tether, worker: worker})
}

// Run spawns every stage and blocks until ctx is cancelled, the finalize
// condition fires, or every stage's tether reports done. Every
// pollInterval (default 5s) it mirrors tether snapshots into the metrics
// registry and logs one debug line per stage; no display mode changes this
// cadence.
func (s *Supervisor) Run(ctx context.Context, pollInterval time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	for _, ps := range s.pending {
		go stage.Run(runCtx, ps.tether, ps.worker, stage.DefaultRetryPolicy())
	}

	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := allDone(s.pending)
	for {
		select {
		case <-runCtx.Done():
			return s.shutdown()
		case <-ticker.C:
			s.observe()
		case <-done:
			return s.shutdown()
		}
	}
}

// TriggerShutdown begins an orderly stop, invoked by the tap stage when
// the configured finalize condition is reached.
func (s *Supervisor) TriggerShutdown() {
	s.shutdownOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Metrics exposes the registry so cmd/chainstream can mount it over HTTP.
func (s *Supervisor) Metrics() *chainmetrics.Registry { return s.metrics }

func (s *Supervisor) observe() {
	for _, ps := range s.pending {
		snap := ps.tether.Snapshot()
		s.metrics.Observe(ps.name, snap)
		if s.log != nil {
			s.log.Debug("stage snapshot", "stage", ps.name, "state", snap.State.String(), "current_slot", snap.CurrentSlot)
		}
	}
}

// shutdown asks every stage's tether to stop (source first, so upstream
// production halts before downstream buffers drain) and waits briefly for
// each to report done. The cursor stage is shut down last so its final
// flush (cursor.Cursor.Teardown) observes every breadcrumb already tracked
// by the tap stage.
func (s *Supervisor) shutdown() error {
	for _, ps := range s.pending {
		if ps.name == "cursor" {
			continue
		}
		ps.tether.Shutdown()
	}
	for _, ps := range s.pending {
		if ps.name == "cursor" {
			continue
		}
		<-ps.tether.Done()
	}
	for _, ps := range s.pending {
		if ps.name != "cursor" {
			continue
		}
		ps.tether.Shutdown()
		<-ps.tether.Done()
	}
	s.observe()
	return nil
}

// allDone returns a channel that closes once every stage's tether is done,
// so Run can exit without an external cancellation if every stage stops on
// its own. The mock transport does not end a run this way: once its script
// is exhausted it blocks until its context is cancelled.
func allDone(pending []pendingStage) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ps := range pending {
			<-ps.tether.Done()
		}
	}()
	return done
}

func buildCursorStore(cfg config.CursorConfig) (cursor.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return &cursor.MemoryStore{}, nil
	case "file":
		return &cursor.FileStore{Path: cfg.Path}, nil
	case "redis":
		return nil, fmt.Errorf("supervisor: cursor.type=redis requires a live *redis.Client; construct cursor.RedisStore directly")
	default:
		return nil, fmt.Errorf("supervisor: unknown cursor.type %q", cfg.Type)
	}
}

// buildSource always consults the cursor store's persisted breadcrumbs
// first, regardless of the configured intersect strategy: a restart with
// valid breadcrumbs on disk resumes from them even when intersect.strategy
// is left at its "origin" default. The configured strategy only applies as
// the fallback used when no breadcrumbs are available, matching the
// IntersectBreadcrumbs case's own fallback.
func buildSource(ctx context.Context, cfg *config.Config, cursorStore cursor.Store) (chain.Transport, chain.IntersectConfig, error) {
	var fallback chain.IntersectConfig
	switch cfg.Intersect.Strategy {
	case "", "origin":
		fallback.Strategy = chain.IntersectOrigin
	case "tip":
		fallback.Strategy = chain.IntersectTip
	case "point":
		hash, err := hex.DecodeString(cfg.Intersect.HashHex)
		if err != nil {
			return nil, chain.IntersectConfig{}, fmt.Errorf("supervisor: intersect.hash_hex: %w", err)
		}
		fallback.Strategy = chain.IntersectPoint
		fallback.Point = model.MustPoint(cfg.Intersect.Slot, hash)
	case "breadcrumbs":
		fallback.Strategy = chain.IntersectOrigin
	default:
		return nil, chain.IntersectConfig{}, fmt.Errorf("supervisor: unknown intersect.strategy %q", cfg.Intersect.Strategy)
	}

	crumbs, err := loadPersistedBreadcrumbs(ctx, cursorStore, cfg.Cursor.MaxBreadcrumbs)
	if err != nil {
		return nil, chain.IntersectConfig{}, fmt.Errorf("supervisor: loading persisted breadcrumbs: %w", err)
	}

	intersectCfg := fallback
	if len(crumbs) > 0 {
		intersectCfg = chain.IntersectConfig{
			Strategy:    chain.IntersectBreadcrumbs,
			Breadcrumbs: crumbs,
			Fallback:    fallback.Strategy,
			Point:       fallback.Point,
		}
	}

	switch cfg.Source.Type {
	case "mock":
		return source.NewMockTransport(nil, model.Origin(), nil), intersectCfg, nil
	case "grpc", "websocket", "cloud_object":
		return nil, chain.IntersectConfig{}, fmt.Errorf("supervisor: source.type=%s requires a live client; construct the matching source.*Transport directly", cfg.Source.Type)
	default:
		return nil, chain.IntersectConfig{}, fmt.Errorf("supervisor: unknown source.type %q", cfg.Source.Type)
	}
}

// loadPersistedBreadcrumbs reads whatever the configured cursor store
// already holds, ahead of the cursor stage's own Bootstrap (which runs
// later, concurrently with the source once Run starts every stage's
// goroutine). The source needs these breadcrumbs at negotiation time, so
// Build reads the store directly rather than waiting on the cursor stage.
func loadPersistedBreadcrumbs(ctx context.Context, store cursor.Store, capacity int) ([]model.Point, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	crumbs, err := breadcrumbs.Load(capacity, data)
	if err != nil {
		return nil, err
	}
	return crumbs.MostRecentFirst(), nil
}

func buildSink(ctx context.Context, cfg config.SinkConfig) (sink.Sink, error) {
	switch cfg.Type {
	case "stdout":
		return &sink.Stdout{Writer: os.Stdout}, nil
	case "file":
		return sink.NewFileRotate(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups), nil
	case "webhook":
		return sink.NewWebhook(cfg.URL, cfg.Headers), nil
	case "sqs":
		s, err := sink.NewAWSSQS(ctx, cfg.QueueURL, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
		if err != nil {
			return nil, fmt.Errorf("supervisor: build sqs sink: %w", err)
		}
		return s, nil
	case "pubsub":
		return nil, fmt.Errorf("supervisor: sink.type=pubsub requires a live *pubsub.Topic; construct sink.GCPPubSub directly")
	default:
		return nil, fmt.Errorf("supervisor: unknown sink.type %q", cfg.Type)
	}
}

func buildFilter(cfg config.FilterConfig, in stage.InputPort, out stage.OutputPort) (stage.Worker, error) {
	switch cfg.Type {
	case "parse":
		return &filter.Parse{In: in, Out: out}, nil
	case "split_block":
		return &filter.SplitBlock{In: in, Out: out}, nil
	case "split_tx":
		return &filter.SplitTx{In: in, Out: out}, nil
	case "rollback_buffer":
		return filter.NewRollbackBuffer(in, out, cfg.MinDepth), nil
	case "select":
		pred, err := predicate.FromConfig(cfg.Predicate)
		if err != nil {
			return nil, fmt.Errorf("supervisor: filter.predicate: %w", err)
		}
		return &filter.Select{In: in, Out: out, Predicate: pred, SkipUncertain: cfg.SkipUncertain}, nil
	case "map_to_json":
		return &filter.MapJSON{In: in, Out: out}, nil
	case "legacy_v1":
		return &filter.LegacyV1{In: in, Out: out}, nil
	case "plugin":
		return &filter.Plugin{In: in, Out: out, Script: cfg.Script}, nil
	default:
		return nil, fmt.Errorf("supervisor: unknown filter.type %q", cfg.Type)
	}
}
