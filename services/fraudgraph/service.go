// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fraudgraph wires the graph store, analytics engine, risk scorer,
// and query engine into one HTTP service.
//
// The service runs the pipeline as a unit: Build loads a dataset into the
// configured store, computes community and centrality analytics, scores
// every user, and publishes a new query engine atomically. Queries always
// see one consistent build; a failed rebuild leaves the previous engine
// in place.
package fraudgraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/fraudgraph/pkg/logging"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/analytics"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/config"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/dataset"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/graph"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/observability"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/query"
	"github.com/AleutianAI/fraudgraph/services/fraudgraph/risk"
	badgerstore "github.com/AleutianAI/fraudgraph/services/fraudgraph/storage/badger"
)

var serviceTracer = otel.Tracer("fraudgraph.service")

// Metric registration is process-global; every Service shares one set of
// collectors so repeated construction never double-registers.
var (
	metricsOnce   sync.Once
	sharedMetrics *observability.Metrics
)

func serviceMetrics() *observability.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// buildState is the immutable output of one pipeline run, published as a
// unit so queries never mix analytics from one build with scores from
// another.
type buildState struct {
	snapshot  *graph.Snapshot
	analytics *analytics.Result
	scores    *risk.ScoreSet
	report    *risk.Report
	engine    *query.Engine
}

// Service owns the fraud graph pipeline and serves queries over it.
//
// Thread Safety: all methods are safe for concurrent use. Rebuilds are
// serialized by an internal mutex; queries read the published build state
// through an atomic pointer and are never blocked by a rebuild.
type Service struct {
	cfg     config.Config
	store   graph.Store
	log     *logging.Logger
	metrics *observability.Metrics

	buildMu sync.Mutex
	state   atomic.Pointer[buildState]

	watcher *DatasetWatcher
}

// New creates a Service backed by the configured store.
//
// Inputs:
//
//   - ctx: Context for store startup. Must not be nil.
//   - cfg: Validated service configuration.
//   - log: Logger. Nil uses the default logger.
//
// Outputs:
//
//   - *Service: The service, ready to build. Caller must Close.
//   - error: Configuration or store startup failure.
func New(ctx context.Context, cfg config.Config, log *logging.Logger) (*Service, error) {
	if log == nil {
		log = logging.Default()
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:     cfg,
		store:   store,
		log:     log,
		metrics: serviceMetrics(),
	}

	// A durable backend may come up with a snapshot from a previous run.
	// Recompute derived state so queries work immediately after restart.
	if snap, err := store.Snapshot(); err == nil {
		log.Info("restored snapshot from storage, recomputing analytics",
			"version", snap.Version())
		if _, err := svc.rebuildFrom(ctx, snap); err != nil {
			store.Close()
			return nil, fmt.Errorf("recomputing analytics for restored snapshot: %w", err)
		}
	}

	return svc, nil
}

func openStore(ctx context.Context, cfg config.Config, log *logging.Logger) (graph.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return graph.NewMemoryStore(), nil
	case config.BackendBadger:
		bcfg := badgerstore.DefaultConfig(cfg.Storage.Path)
		bcfg.SyncWrites = cfg.Storage.SyncWrites
		bcfg.Logger = log.Slog()
		return badgerstore.Open(ctx, bcfg)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q",
			graph.ErrValidation, cfg.Storage.Backend)
	}
}

// =============================================================================
// Pipeline
// =============================================================================

// Build runs the full pipeline on a dataset: store build, analytics,
// risk scoring, report, query engine. The new state is published only
// after every stage succeeds.
func (s *Service) Build(ctx context.Context, ds *dataset.Dataset) (*BuildResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "Service.Build")
	defer span.End()

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()

	snap, err := s.store.Build(ctx, ds)
	if err != nil {
		s.metrics.RecordBuild("error", time.Since(start))
		return nil, fmt.Errorf("building graph: %w", err)
	}

	resp, err := s.rebuildFrom(ctx, snap)
	if err != nil {
		s.metrics.RecordBuild("error", time.Since(start))
		return nil, err
	}

	resp.BuildTimeMs = time.Since(start).Milliseconds()
	s.metrics.RecordBuild("success", time.Since(start))
	span.SetAttributes(
		attribute.Int64("snapshot_version", resp.SnapshotVersion),
		attribute.Int("flagged_users", resp.FlaggedUsers),
	)

	s.log.Info("pipeline build complete",
		"version", resp.SnapshotVersion,
		"users", resp.Statistics.UserCount,
		"devices", resp.Statistics.DeviceCount,
		"transactions", resp.Statistics.TransactionCount,
		"communities", resp.Communities,
		"flagged", resp.FlaggedUsers,
		"duration_ms", resp.BuildTimeMs)

	return resp, nil
}

// LoadAndBuild loads the dataset from a directory of CSV files and runs
// the pipeline on it. An empty dir uses the configured dataset directory.
func (s *Service) LoadAndBuild(ctx context.Context, dir string) (*BuildResponse, error) {
	if dir == "" {
		dir = s.cfg.Dataset.Dir
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: no dataset directory configured", graph.ErrValidation)
	}

	s.log.Info("loading dataset", "dir", dir)
	ds, err := dataset.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading dataset from %s: %w", dir, err)
	}

	return s.Build(ctx, ds)
}

// rebuildFrom computes analytics, scores, report, and query engine for an
// already-built snapshot and publishes the result. Callers hold buildMu
// except during New, where no concurrent access exists yet.
func (s *Service) rebuildFrom(ctx context.Context, snap *graph.Snapshot) (*BuildResponse, error) {
	opts := s.analyticsOptions()

	ana, err := analytics.Compute(ctx, snap, opts)
	if err != nil {
		return nil, fmt.Errorf("computing analytics: %w", err)
	}
	if ana.Centrality.Degraded {
		s.log.Warn("pagerank did not converge, scores are best estimates",
			"iterations", ana.Centrality.PageRankIterations)
	}

	scores, err := risk.Score(ctx, snap, ana, s.cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("scoring users: %w", err)
	}

	report, err := risk.Evaluate(snap, ana, scores)
	if err != nil {
		return nil, fmt.Errorf("evaluating report: %w", err)
	}

	engine, err := query.New(s.store, ana, scores)
	if err != nil {
		return nil, fmt.Errorf("creating query engine: %w", err)
	}

	s.state.Store(&buildState{
		snapshot:  snap,
		analytics: ana,
		scores:    scores,
		report:    report,
		engine:    engine,
	})

	stats := snap.Statistics()
	flagged := len(scores.FlaggedIDs())
	s.metrics.RecordGraphSize(stats.UserCount, stats.DeviceCount,
		stats.UsesDeviceCount, stats.TransactionCount, flagged)

	return &BuildResponse{
		SnapshotVersion:   snap.Version(),
		Statistics:        stats,
		Communities:       len(ana.Communities.Communities),
		Modularity:        ana.Communities.Modularity,
		FlaggedUsers:      flagged,
		AnalyticsDegraded: ana.Centrality.Degraded,
	}, nil
}

func (s *Service) analyticsOptions() *analytics.Options {
	a := s.cfg.Analytics
	return &analytics.Options{
		PageRank: &analytics.PageRankOptions{
			DampingFactor: a.PageRankDamping,
			MaxIterations: a.PageRankMaxIterations,
			Convergence:   a.PageRankConvergence,
		},
		Community: &analytics.CommunityOptions{
			MaxSweeps:  a.CommunityMaxSweeps,
			Tolerance:  a.CommunityTolerance,
			Resolution: a.CommunityResolution,
		},
	}
}

// =============================================================================
// Published state accessors
// =============================================================================

// Engine returns the published query engine, or ErrNoSnapshot before the
// first successful build.
func (s *Service) Engine() (*query.Engine, error) {
	st := s.state.Load()
	if st == nil {
		return nil, fmt.Errorf("%w: build a dataset first", graph.ErrNoSnapshot)
	}
	return st.engine, nil
}

// Report returns the published fraud report, or ErrNoSnapshot before the
// first successful build.
func (s *Service) Report() (*risk.Report, error) {
	st := s.state.Load()
	if st == nil {
		return nil, fmt.Errorf("%w: build a dataset first", graph.ErrNoSnapshot)
	}
	return st.report, nil
}

// Snapshot returns the published snapshot, or ErrNoSnapshot before the
// first successful build.
func (s *Service) Snapshot() (*graph.Snapshot, error) {
	st := s.state.Load()
	if st == nil {
		return nil, fmt.Errorf("%w: build a dataset first", graph.ErrNoSnapshot)
	}
	return st.snapshot, nil
}

// Ready reports whether a build has been published, and the published
// snapshot version when ready.
func (s *Service) Ready() (bool, int64) {
	st := s.state.Load()
	if st == nil {
		return false, 0
	}
	return true, st.snapshot.Version()
}

// Metrics returns the service metrics for instrumentation by handlers.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// Close stops the dataset watcher, if running, and releases the store.
func (s *Service) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	return s.store.Close()
}

// =============================================================================
// HTTP server
// =============================================================================

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully. When dataset watching is enabled the watcher
// runs for the lifetime of the server.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Dataset.Watch && s.cfg.Dataset.Dir != "" {
		w, err := NewDatasetWatcher(s, s.cfg.Dataset.Dir, s.cfg.Dataset.DebounceInterval.Std(), s.log)
		if err != nil {
			return fmt.Errorf("starting dataset watcher: %w", err)
		}
		s.watcher = w
		w.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := NewHandlers(s, s.log)
	RegisterRoutes(router.Group("/v1/fraudgraph"), handlers)

	router.GET("/health", handlers.Health)
	router.GET("/ready", handlers.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("fraudgraph server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down fraudgraph server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
