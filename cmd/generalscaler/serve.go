package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OldStager01/generalscaler/api"
	"github.com/OldStager01/generalscaler/api/handlers"
	"github.com/OldStager01/generalscaler/internal/auth"
	"github.com/OldStager01/generalscaler/internal/events"
	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/internal/metrics"
	"github.com/OldStager01/generalscaler/internal/orchestrator"
	"github.com/OldStager01/generalscaler/internal/reconcile"
	"github.com/OldStager01/generalscaler/internal/safety"
	"github.com/OldStager01/generalscaler/internal/sources"
	"github.com/OldStager01/generalscaler/internal/workload"
	"github.com/OldStager01/generalscaler/pkg/config"
	"github.com/OldStager01/generalscaler/pkg/database"
	"github.com/OldStager01/generalscaler/pkg/database/queries"
	"github.com/OldStager01/generalscaler/pkg/models"
)

const retentionSweepInterval = time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconcile loops and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	var db *database.DB
	if cfg.Database.Enabled {
		var err error
		db, err = database.New(cfg.Database.ToDBConfig())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logger.Infof("Connected to database %s", cfg.Database.Name)
	}

	w, err := newWorkload(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	bus := events.NewEventBus(cfg.Events.BufferSize)
	publisher := events.NewPublisher(bus)

	registry := sources.NewRegistry(cfg.Sources.ToSourcesConfig(), sources.WithCircuitObserver(m.SetCircuitState))
	defer registry.Close()

	engineOpts := []reconcile.Option{reconcile.WithHooks(m, publisher)}
	if cfg.Reconcile.DryRun {
		logger.Warnf("Dry run enabled: replica counts will not be written")
		engineOpts = append(engineOpts, reconcile.WithDryRun())
	}
	engine := reconcile.NewEngine(w, safety.NewGovernor(), registry, engineOpts...)

	var decisionStore events.DecisionStore
	var history handlers.DecisionHistory
	orchOpts := []orchestrator.Option{
		orchestrator.WithPublisher(publisher),
		orchestrator.OnRemove(m.Forget),
	}
	if mem, ok := w.(*workload.Memory); ok {
		orchOpts = append(orchOpts, orchestrator.OnApply(seedMemory(mem)))
	}
	checks := map[string]handlers.CheckFunc{}
	if db != nil {
		decisions := queries.NewDecisionRepository(db.DB)
		decisionStore = decisions
		history = decisions
		orchOpts = append(orchOpts, orchestrator.WithStore(queries.NewScalerRepository(db.DB)))
		checks["database"] = db.HealthCheck
	}

	eventLogger := events.NewEventLogger(decisionStore, bus.SubscribeAll())
	eventLogger.Start()

	orch := orchestrator.New(orchestrator.Config{
		Interval: cfg.Reconcile.Interval,
		Timeout:  cfg.Reconcile.Timeout,
	}, engine, orchOpts...)
	if err := orch.Start(ctx, cfg.Scalers); err != nil {
		logger.Warnf("Some scalers failed to start: %v", err)
	}

	deps := api.Deps{
		Scalers: orch,
		History: history,
		Checks:  checks,
		Events:  bus.SubscribeAll(),
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = m.Handler()
	}
	authService := auth.NewService(cfg.API.JWTSecret, cfg.API.JWTDuration, auth.WithIssuer(cfg.API.JWTIssuer))
	server := api.NewServer(cfg, authService, deps)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.API.Enabled {
		g.Go(func() error {
			logger.Infof("API listening on :%d", cfg.API.Port)
			return server.Start()
		})
	}
	if db != nil && cfg.Database.RetentionPeriod > 0 {
		decisions := queries.NewDecisionRepository(db.DB)
		g.Go(func() error {
			sweepHistory(gctx, decisions, cfg.Database.RetentionPeriod)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down")

		orch.Stop()

		shutdownTimeout := cfg.App.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 30 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			logger.Errorf("API shutdown failed: %v", err)
		}

		bus.Close()
		eventLogger.Stop()
		return nil
	})

	err = g.Wait()
	logger.Infof("Stopped")
	return err
}

func newWorkload(cfg *config.Config) (workload.Workload, error) {
	if cfg.Kubernetes.Enabled {
		client, err := workload.NewClientset(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.InCluster)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		return workload.NewDeployments(client), nil
	}

	logger.Warnf("Kubernetes disabled: scaling an in-memory workload")
	return workload.NewMemory(workload.OnReplicasChanged(func(target models.ScalingTarget, from, to int) {
		logger.WithTarget(target).Infof("Replicas %d -> %d", from, to)
	})), nil
}

// seedMemory registers every managed target in the in-memory workload at its
// lower bound, so scalers added over the API have something to scale.
func seedMemory(mem *workload.Memory) func(scaler models.Scaler) {
	return func(scaler models.Scaler) {
		minReplicas, _ := scaler.Spec.Bounds()
		if mem.Ensure(scaler.Target, minReplicas) {
			logger.WithTarget(scaler.Target).Infof("Seeded in-memory workload at %d replicas", minReplicas)
		}
	}
}

type historyPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func sweepHistory(ctx context.Context, store historyPruner, retention time.Duration) {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := store.DeleteOlderThan(ctx, now.Add(-retention))
			if err != nil {
				logger.Errorf("Decision history sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				logger.Debugf("Pruned %d decision records", deleted)
			}
		}
	}
}

func withTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
