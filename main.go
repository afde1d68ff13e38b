package main

import (
	"context"
	"fmt"
	"itemsvc/infra/database"
	"itemsvc/infra/rabbitmq"
	"itemsvc/internal/httpapi"
	"itemsvc/pkg/config"
	"itemsvc/pkg/events"
	"itemsvc/pkg/logger"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
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

	zap.L().Info("app starting...",
		zap.String("serviceName", appConfig.ServiceName),
		zap.String("dbDriver", appConfig.DBDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := database.Open(openCtx, database.ConfigFromApp(appConfig))
	openCancel()
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	var publisher events.Publisher
	if appConfig.RabbitMQURL != "" {
		p, err := rabbitmq.NewPublisher(ctx, appConfig.RabbitMQURL, appConfig.ServiceName)
		if err != nil {
			zap.L().Error("Event publishing disabled", zap.Error(err))
		} else {
			publisher = p
			defer p.Close()
		}
	}

	app := httpapi.NewApp(httpapi.Dependencies{
		Repository:  database.NewItemRepository(db),
		Pinger:      db,
		Publisher:   publisher,
		ServiceName: appConfig.ServiceName,
	})

	// Start server in a goroutine
	go func() {
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", appConfig.Port)); err != nil {
			zap.L().Error("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	zap.L().Info("Server started on port", zap.String("port", appConfig.Port))

	go logPoolStats(ctx, db)

	gracefulShutdown(app)
}

func logPoolStats(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.PoolStats()
			zap.L().Debug("Connection pool stats",
				zap.Int("max_open", stats.MaxOpenConnections),
				zap.Int("open", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int("idle", stats.Idle),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Int64("wait_duration_ms", stats.WaitDuration.Milliseconds()),
			)
		}
	}
}

func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	zap.L().Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		zap.L().Error("Error during server shutdown", zap.Error(err))
	}

	zap.L().Info("Server gracefully stopped")
}
