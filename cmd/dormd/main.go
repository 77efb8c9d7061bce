package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"dorm-allocation-backend/config"
	"dorm-allocation-backend/internal/allocation"
	"dorm-allocation-backend/internal/api"
	"dorm-allocation-backend/internal/application"
	"dorm-allocation-backend/internal/db"
	"dorm-allocation-backend/internal/logging"
	"dorm-allocation-backend/internal/mw"
	"dorm-allocation-backend/internal/notification"
	"dorm-allocation-backend/internal/pass"
	"dorm-allocation-backend/internal/report"
	"dorm-allocation-backend/internal/reservation"
	"dorm-allocation-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "dormd")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret must be configured")
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	// Without VAPID keys notifications are still recorded; they stay pending
	// until a worker pool with keys picks them up.
	var (
		webpushOptions *webpush.Options
		pool           *notification.WorkerPool
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		if _, err := pool.RedeliverPending(ctx); err != nil {
			logger.Warn("failed to requeue pending notifications", zap.Error(err))
		}
	} else {
		logger.Warn("VAPID keys are not configured; push delivery is disabled")
	}
	outbox := notification.NewOutbox(pool, logger)

	boundary := cfg.Allocation.YearBoundary()
	passes := pass.NewIssuer(gormDB, logger)
	reservations := reservation.NewLedger(appStore, passes, outbox, boundary, logger)
	applications := application.NewLedger(appStore, reservations, outbox, boundary, logger)
	engine := allocation.NewEngine(appStore, applications, reservations, passes, outbox, logger)

	handler := api.NewHandler(api.Services{
		Store:        appStore,
		Applications: applications,
		Reservations: reservations,
		Engine:       engine,
		Passes:       passes,
		Roster:       report.NewRoster(appStore),
	}, webpushOptions, logger)
	tokens := mw.NewTokenAuthority(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	router := api.NewRouter(handler, tokens, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("server gracefully stopped")
}
