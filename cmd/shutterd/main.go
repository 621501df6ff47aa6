package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"shutter-control-backend/config"
	"shutter-control-backend/internal/api"
	"shutter-control-backend/internal/control"
	"shutter-control-backend/internal/db"
	"shutter-control-backend/internal/mqtt"
	"shutter-control-backend/internal/notification"
	"shutter-control-backend/internal/retention"
	"shutter-control-backend/internal/schedule"
	"shutter-control-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "shutter-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	loc, err := time.LoadLocation(cfg.Control.Timezone)
	if err != nil {
		logger.Fatalf("invalid control.timezone %q: %v", cfg.Control.Timezone, err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Printf("database initialized successfully (%s)", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	background := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	var notifiers control.Notifiers
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		notifiers = append(notifiers, pool)
		logger.Printf("web push enabled with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; web push disabled")
	}

	if cfg.MQTT.Enabled {
		publisher, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			logger.Fatalf("failed to connect to MQTT broker %s: %v", cfg.MQTT.Broker, err)
		}
		background(publisher.Run)
		notifiers = append(notifiers, publisher)
	}

	controller := control.NewController(appStore, control.MessagesFor(cfg.Control.Locale), notifiers)

	reconciler := schedule.NewReconciler(appStore, controller, loc, cfg.Scheduler.ReloadInterval)
	background(reconciler.Run)

	sweeper := retention.NewSweeper(appStore, cfg.Retention.Horizon, cfg.Retention.Interval)
	background(sweeper.Run)

	handler := api.NewHandler(controller, appStore, reconciler, nil, webpushOptions)
	router := api.NewRouter(cfg.Server, handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	cancel()
	wg.Wait()

	logger.Println("Server gracefully stopped")
}
