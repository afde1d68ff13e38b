package main

import (
	"context"
	"fmt"
	"itemsvc/infra/database"
	"itemsvc/infra/grpc"
	"itemsvc/infra/rabbitmq"
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

	zap.L().Info("Item gRPC Service starting...")

	grpcServer, err := grpc.NewServer(appConfig)
	if err != nil {
		zap.L().Fatal("failed to create grpc server", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.Open(ctx, database.ConfigFromApp(appConfig))
	cancel()
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	var publisher events.Publisher
	if appConfig.RabbitMQURL != "" {
		p, err := rabbitmq.NewPublisher(context.Background(), appConfig.RabbitMQURL, appConfig.ServiceName)
		if err != nil {
			zap.L().Error("Event publishing disabled", zap.Error(err))
		} else {
			publisher = p
			defer p.Close()
		}
	}

	itemService := grpc.NewItemService(database.NewItemRepository(db), publisher, appConfig.ServiceName)
	grpc.RegisterItemServiceServer(grpcServer.GetGRPCServer(), itemService)
	grpcServer.SetServing(true)

	zap.L().Info("starting gRPC server...", zap.String("port", appConfig.GRPCPort))
	go func() {
		if err := grpcServer.Start(); err != nil {
			zap.L().Error("failed to start grpc server", zap.Error(err))
			os.Exit(1)
		}
	}()

	gracefulShutdown(grpcServer)
}

func gracefulShutdown(grpcServer *grpc.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	zap.L().Info("Shutting down server...")

	grpcServer.GracefulStop()

	zap.L().Info("Server gracefully stopped")
}
