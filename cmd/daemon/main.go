package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/config"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/download"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/handler"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/messenger"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/metrics"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/repository"
	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/service"
)

func main() {
	envFile := flag.String("env", ".env", "path to env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to load env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	repo, err := repository.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to initialize repository: %v", err)
	}
	defer repo.Close()

	metricsInstance := metrics.NewMetrics()
	rateLimiter := service.NewRateLimiter(cfg.MaxSubmissionsPerMin)

	var engine download.Engine = download.UnconfiguredEngine{}
	if cfg.MockDownloads {
		engine = download.NewMockEngine()
	}

	states := service.NewStateMachine(repo)
	jobService := service.NewJobService(repo, rateLimiter, metricsInstance, cfg)
	jobService.AttachTitleProber(engine)
	archiver := service.NewArchiver(repo, metricsInstance, cfg)
	runner := service.NewRunner(repo, states, jobService, engine, archiver, metricsInstance, cfg)
	scheduler := service.NewScheduler(repo, states, runner, cfg)
	deliverer := service.NewDeliverer(repo, messenger.NewLogMessenger(), metricsInstance, cfg)
	cleaner := service.NewCleaner(repo, metricsInstance, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Jobs left RUNNING by the previous process go back to the queue.
	if err := scheduler.RecoverInterrupted(ctx); err != nil {
		log.Fatalf("failed to recover interrupted jobs: %v", err)
	}

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	jobHandler := handler.NewJobHandler(jobService)
	adminHandler := handler.NewAdminHandler(repo, metricsInstance)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler.NewRouter(jobHandler, adminHandler),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return deliverer.Run(ctx) })
	g.Go(func() error { return cleaner.Run(ctx) })

	g.Go(func() error {
		log.Printf("HTTP server starting on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("daemon error: %v", err)
	}
	log.Println("daemon stopped")
}
