package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/banner"
	"github.com/mcastellin/chatmesh/pkg/transport"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	clientAddr := envOr("BROKER_CLIENT_ADDR", ":5557")
	workerAddr := envOr("BROKER_WORKER_ADDR", ":5558")

	fmt.Println(banner.Render("chatmesh command broker",
		banner.Field{Label: "clients", Value: clientAddr},
		banner.Field{Label: "replicas", Value: workerAddr},
	))

	broker := &transport.CommandBroker{ClientAddr: clientAddr, WorkerAddr: workerAddr, Logger: logger}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("broker listening", zap.String("clients", clientAddr), zap.String("replicas", workerAddr))
	if err := broker.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("broker exited", zap.Error(err))
	}
}
