package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/banner"
	"github.com/mcastellin/chatmesh/pkg/clock"
	"github.com/mcastellin/chatmesh/pkg/replica"
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

	id := os.Getenv("SERVER_NAME")
	if id == "" {
		id = "replica-" + uuid.NewString()
	}

	cfg := replica.Config{
		ID:            id,
		DataDir:       envOr("DATA_DIR", "./data"),
		BrokerAddr:    envOr("BROKER_ADDR", "127.0.0.1:5558"),
		P2PAddr:       envOr("P2P_ADDR", ":5570"),
		PubSubIngress: envOr("PUBSUB_INGRESS_ADDR", "127.0.0.1:5555"),
		PubSubEgress:  envOr("PUBSUB_EGRESS_ADDR", "127.0.0.1:5556"),
		RegistryAddr:  envOr("REGISTRY_ADDR", "127.0.0.1:5560"),
	}

	fmt.Println(banner.Render("chatmesh replica",
		banner.Field{Label: "id", Value: cfg.ID},
		banner.Field{Label: "p2p", Value: cfg.P2PAddr},
		banner.Field{Label: "broker", Value: cfg.BrokerAddr},
		banner.Field{Label: "registry", Value: cfg.RegistryAddr},
	))

	rep, err := replica.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to construct replica", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if os.Getenv("NTP_DIAGNOSTIC") == "1" {
		checker := clock.NewNTPChecker()
		go checker.Run(ctx)
	}

	logger.Info("replica starting", zap.String("id", cfg.ID))
	if err := rep.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("replica exited", zap.Error(err))
	}
}
