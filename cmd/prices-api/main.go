package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotefeed/prices-api/internal/config"
	"github.com/quotefeed/prices-api/internal/job"
	"github.com/quotefeed/prices-api/internal/platform/sqlite"
	"github.com/quotefeed/prices-api/internal/price"
	jobrepo "github.com/quotefeed/prices-api/internal/repository/job"
	pricerepo "github.com/quotefeed/prices-api/internal/repository/price"
	"github.com/quotefeed/prices-api/internal/scraper"
	"github.com/quotefeed/prices-api/internal/server"
	"github.com/quotefeed/prices-api/internal/yahoo"
)

func main() {
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so in-flight scraper workers
	// stop promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	priceRepo := pricerepo.NewRepository(db.DB)
	jobRepo := jobrepo.NewRepository(db.DB)

	registry := scraper.NewRegistry()
	registry.Register(yahoo.New(
		yahoo.WithWorkers(cfg.Workers),
		yahoo.WithResetInterval(time.Duration(cfg.CrumbResetInterval)*time.Minute),
	))

	jobSvc := job.NewService(jobRepo)
	priceSvc := price.NewService(priceRepo, jobRepo, registry)

	// Worker pool: picks up pending scrape jobs in the background.
	pool := job.NewWorkerPool(jobRepo, priceSvc, cfg.Workers)
	priceSvc.SetNotify(pool.Notify)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(rootCtx)
		close(poolDone)
	}()

	// Re-queue interrupted jobs (running at last shutdown) so workers pick
	// them up again.
	if err := jobSvc.RecoverStaleJobs(rootCtx); err != nil {
		slog.Error("failed to recover stale jobs", "error", err)
	}
	pool.Notify()

	srv := server.New(rootCtx, cfg.Port, priceSvc, jobSvc)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	<-done

	// Cancel root context first so in-flight requests (and their scraper
	// workers) begin winding down immediately.
	rootCancel()
	<-poolDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
