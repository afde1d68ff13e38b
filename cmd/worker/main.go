package main

import (
	"context"
	"errors"
	"fmt"
	"itemsvc/infra/database"
	"itemsvc/infra/rabbitmq"
	"itemsvc/internal/consumers"
	"itemsvc/pkg/config"
	"itemsvc/pkg/events"
	"itemsvc/pkg/logger"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	appConfig := config.Read()

	log, err := logger.New(appConfig.AppEnv, appConfig.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.L().Info("Item Worker Service starting...")

	if appConfig.RabbitMQURL == "" {
		zap.L().Fatal("RABBITMQ_URL is required for worker service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := database.Open(openCtx, database.ConfigFromApp(appConfig))
	openCancel()
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	itemHandler := consumers.NewItemEventHandler(database.NewItemRepository(db), zap.L())

	// Queue name: {service}.{domain}.{events}.{version}
	consumerConfig := rabbitmq.ConsumerConfig{
		Exchange:       events.ItemExchange,
		QueueName:      appConfig.ServiceName + "-worker.item.created.v1",
		RoutingKeys:    []string{events.ItemCreatedEvent + "." + events.EventVersionV1},
		ServiceName:    appConfig.ServiceName + "-worker",
		PrefetchCount:  10,
		WorkerPoolSize: 4,
	}

	consumer, err := rabbitmq.NewConsumer(ctx, appConfig.RabbitMQURL, consumerConfig)
	if err != nil {
		zap.L().Fatal("Failed to create item consumer", zap.Error(err))
	}
	defer consumer.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		zap.L().Info("Starting item event consumer...")
		if err := consumer.Consume(ctx, itemHandler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("Item consumer error", zap.Error(err))
		}
	}()

	zap.L().Info("Worker service started successfully. Waiting for events...",
		zap.String("exchange", consumerConfig.Exchange),
		zap.String("queue", consumerConfig.QueueName),
	)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping worker service...")
	case <-done:
		zap.L().Warn("Consumer stopped, shutting down worker service...")
	}
	cancel()
	<-done

	zap.L().Info("Worker service stopped gracefully")
}
