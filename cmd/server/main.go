package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerpilot/reconciler/internal/clients/extraction"
	"github.com/ledgerpilot/reconciler/internal/config"
	"github.com/ledgerpilot/reconciler/internal/database"
	"github.com/ledgerpilot/reconciler/internal/events"
	"github.com/ledgerpilot/reconciler/internal/ledger"
	"github.com/ledgerpilot/reconciler/internal/modules/locks"
	"github.com/ledgerpilot/reconciler/internal/modules/matching"
	"github.com/ledgerpilot/reconciler/internal/modules/patterns"
	"github.com/ledgerpilot/reconciler/internal/modules/reconciliation"
	"github.com/ledgerpilot/reconciler/internal/scheduler"
	"github.com/ledgerpilot/reconciler/internal/server"
	"github.com/ledgerpilot/reconciler/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "error"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting reconciliation service")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := locks.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create lock schema")
	}
	if err := patterns.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create pattern schema")
	}
	if err := ledger.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger schema")
	}

	// Wire the core bottom-up: stores, services, committer.
	eventManager := events.NewManager(log)
	lockManager := locks.NewManager(
		locks.NewRepository(db.Conn(), log),
		time.Duration(cfg.LockTTLSeconds)*time.Second,
		log,
	)
	learner := patterns.NewLearner(patterns.NewRepository(db.Conn(), log), eventManager, log)
	ledgerStore := ledger.NewStore(db.Conn(), log)
	extractor := extraction.NewClient(cfg.ExtractionServiceURL, log)

	committer := reconciliation.NewService(
		lockManager,
		learner,
		ledgerStore,
		extractor,
		eventManager,
		matching.Config{
			DateToleranceDays: cfg.DateToleranceDays,
			MinScore:          cfg.MinMatchScore,
		},
		log,
	)

	sched := scheduler.New(log)
	if err := sched.AddJob("@every 1m", scheduler.NewLockSweepJob(lockManager, eventManager, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register lock sweep job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:            cfg.Port,
		Log:             log,
		DB:              db,
		DevMode:         cfg.DevMode,
		LockHandlers:    locks.NewHandlers(lockManager, log),
		PatternHandlers: patterns.NewHandlers(learner, log),
		ReconHandlers:   reconciliation.NewHandlers(committer, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
