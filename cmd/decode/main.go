// Command decode runs the claim-tracking worker: it wires the stores, the
// per-issue lock, the coordinator, and the escalation scheduler, then blocks
// until shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/Auankj/decode/internal/adapter/driven/github"
	"github.com/Auankj/decode/internal/adapter/driven/lockcache"
	sqliteadapter "github.com/Auankj/decode/internal/adapter/driven/sqlite"
	"github.com/Auankj/decode/internal/application"
	"github.com/Auankj/decode/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"db_path", cfg.DBPath,
		"scan_interval", cfg.ScanInterval,
		"lock_ttl", cfg.LockTTL,
		"worker", cfg.WorkerName,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	claimStore := sqliteadapter.NewClaimRepo(db)
	jobStore := sqliteadapter.NewJobRepo(db)
	configStore := sqliteadapter.NewRepoConfigRepo(db)
	eventQueue := sqliteadapter.NewEventRepo(db)
	lockStore := lockcache.New(time.Minute)
	ghClient := github.NewClient(cfg.GitHubToken)

	// 6. Wire services.
	locks := application.NewLockManager(lockStore, cfg.WorkerName).WithTTL(cfg.LockTTL)
	retry := application.NewRetryPolicy(cfg.MaxRetries, time.Second, jobStore)
	escalation := application.NewEscalationService(
		claimStore, jobStore, configStore, ghClient, ghClient, ghClient, retry, cfg.ScanInterval)
	coordinator := application.NewClaimCoordinator(locks, claimStore, configStore, escalation)
	dispatcher := application.NewDispatcher(eventQueue, coordinator, retry, cfg.ScanInterval)

	// 7. Run the dispatch and escalation loops until shutdown.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		escalation.Start(ctx)
	}()

	slog.Info("decode started")
	<-ctx.Done()
	slog.Info("shutting down")

	wg.Wait()
	slog.Info("shutdown complete")
	return nil
}
