package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ballotengine "agora/contexts/assembly-governance/ballot-engine"
	"agora/contexts/assembly-governance/ballot-engine/adapters/boltarchive"
	postgresadapter "agora/contexts/assembly-governance/ballot-engine/adapters/postgres"
	workerapp "agora/contexts/assembly-governance/ballot-engine/application/workers"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/messaging"
	"agora/internal/platform/metrics"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type WorkerApp struct {
	postgres      *db.Postgres
	archive       *boltarchive.Archive
	module        ballotengine.Module
	relay         workerapp.OutboxRelay
	recorder      *metrics.Recorder
	metricsAddr   string
	watchInterval time.Duration
	relayInterval time.Duration
	watchEnabled  bool
	relayEnabled  bool
	logger        *slog.Logger
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	archive, err := boltarchive.Open(cfg.ArchivePath)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	bus := messaging.NewBus(logger)
	recorder := metrics.NewRecorder(cfg.ServiceName)
	repo := postgresadapter.NewRepository(pg.DB, logger)

	module := ballotengine.NewModule(ballotengine.Dependencies{
		Ballots: repo,
		Secrets: repo,
		Votes:   repo,
		Results: repo,
		Archive: archive,
		Roster:  repo,
		Outbox:  repo,
		Clock:   postgresadapter.SystemClock{},
		IDGen:   postgresadapter.UUIDGenerator{},
		Tokens:  postgresadapter.RandomSecretSource{},
		Logger:  logger,
		Metrics: recorder,
	})

	return &WorkerApp{
		postgres: pg,
		archive:  archive,
		module:   module,
		relay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.RelayBatch,
			Logger:    logger,
		},
		recorder:      recorder,
		metricsAddr:   normalizeAddr(cfg.MetricsPort),
		watchInterval: cfg.WatchInterval,
		relayInterval: cfg.RelayInterval,
		watchEnabled:  cfg.EnablePeriodWatcher,
		relayEnabled:  cfg.EnableOutboxRelay,
		logger:        logger,
	}, nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	go w.serveMetrics(ctx)

	watchTicker := time.NewTicker(w.watchInterval)
	defer watchTicker.Stop()
	relayTicker := time.NewTicker(w.relayInterval)
	defer relayTicker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"watch_interval", w.watchInterval.String(),
		"relay_interval", w.relayInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watchTicker.C:
			if !w.watchEnabled {
				continue
			}
			if err := w.module.Watcher.RunOnce(ctx); err != nil {
				return err
			}
		case <-relayTicker.C:
			if !w.relayEnabled {
				continue
			}
			if err := w.relay.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *WorkerApp) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.recorder.Handler())
	server := &http.Server{Addr: w.metricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		w.logger.Error("metrics endpoint failed",
			"event", "bootstrap_metrics_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"addr", w.metricsAddr,
			"error", err.Error(),
		)
	}
}

func (w *WorkerApp) Close() error {
	var firstErr error
	if w.archive != nil {
		if err := w.archive.Close(); err != nil {
			firstErr = err
		}
	}
	if w.postgres != nil {
		if err := w.postgres.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":9100"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
