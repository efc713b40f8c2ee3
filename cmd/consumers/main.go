package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"festival/cmd/consumers/jobs"
	"festival/internal/config"
	"festival/internal/consumers"
	"festival/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting consumers service...")

	// Отдельный client ID, иначе NATS Streaming разорвет соединение API
	cfg.NATS.ClientID = "festival-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	expirationJob := jobs.NewIntentExpirationJob(consumerService.Store(), consumerService.NATS(), cfg.IntentTTL, cfg.SweepInterval)
	expirationJob.Start(ctx)

	dispatchJob := jobs.NewScheduledNotificationJob(consumerService.ScheduledNotifications(), consumerService.Notifications(), cfg.DispatchInterval)
	dispatchJob.Start(ctx)

	log.Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down consumers service...")

	expirationJob.Stop()
	dispatchJob.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Consumers service stopped")
}
