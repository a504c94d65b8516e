package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"podcastai/internal/api"
	"podcastai/internal/assets/filestore"
	"podcastai/internal/config"
	"podcastai/internal/domain"
	generator "podcastai/internal/generator/openai"
	"podcastai/internal/logging"
	"podcastai/internal/playback"
	"podcastai/internal/publisher"
	"podcastai/internal/scheduler"
	"podcastai/internal/service"
	"podcastai/internal/storage/postgres"
	synthesizer "podcastai/internal/synthesizer/openai"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job orchestrator and session sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	lock := flock.New(cfg.LockFile)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podcastd instance is already running")
	}
	defer func() { _ = lock.Unlock() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	pub, err := newPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	assets, err := filestore.New(cfg.Assets, logger)
	if err != nil {
		return err
	}

	podcasts := postgres.NewPodcastStore(db)
	orchestrator := service.NewOrchestrator(
		postgres.NewJobStore(db),
		postgres.NewAudioStageStore(db),
		podcasts,
		postgres.NewTransactionManager(db),
		generator.New(cfg.Generator, logger),
		synthesizer.New(cfg.Synthesizer, logger),
		assets,
		pub,
		logger,
		cfg.Jobs,
	)
	if *cfg.Jobs.ResumeOnStart {
		resumed, err := orchestrator.Resume(ctx)
		if err != nil {
			return fmt.Errorf("resume jobs: %w", err)
		}
		logger.Info("resumed interrupted jobs", "count", resumed)
	}

	catalog := service.NewCatalog(podcasts, assets, logger)

	registry := playback.NewRegistry(
		func() playback.Engine { return playback.NewAssetEngine(assets) },
		playback.Options{
			CatchUpTolerance: cfg.Playback.CatchUpTolerance,
			CatchUpWindow:    cfg.Playback.CatchUpWindow,
			SkipInterval:     cfg.Playback.SkipInterval,
			InitialRate:      domain.Rate(cfg.Defaults.PlaybackSpeed),
		},
		cfg.Playback.IdleTTL,
		logger,
	)
	defer registry.CloseAll()

	sweeper := scheduler.NewScheduler("session-sweep", registry, cfg.Playback.SweepInterval, logger)
	server := api.New(orchestrator, catalog, registry, cfg.Defaults, cfg.HTTP, logger)
	if strings.HasPrefix(cfg.Assets.PublicBaseURL, "/") {
		server.ServeAssets(cfg.Assets.PublicBaseURL, cfg.Assets.Dir)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.Listen(cfg.HTTP.Addr); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	logger.Info("podcastd started",
		"addr", cfg.HTTP.Addr,
		"max_concurrent_jobs", cfg.Jobs.MaxConcurrent,
		"events", cfg.RabbitMQ.Enabled,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-errCh:
		logger.Error("component failed", "error", runErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs left for resume", "error", err)
	}
	logger.Info("podcastd stopped")
	return runErr
}

func newPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (service.Publisher, error) {
	if !cfg.Enabled {
		return publisher.NewLogPublisher(logger), nil
	}
	return publisher.NewRabbitMQ(cfg, logger)
}
