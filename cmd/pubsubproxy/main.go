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

	ingressAddr := envOr("PUBSUB_INGRESS_ADDR", ":5555")
	egressAddr := envOr("PUBSUB_EGRESS_ADDR", ":5556")

	fmt.Println(banner.Render("chatmesh pubsub proxy",
		banner.Field{Label: "ingress", Value: ingressAddr},
		banner.Field{Label: "egress", Value: egressAddr},
	))

	proxy := &transport.PubSubProxy{IngressAddr: ingressAddr, EgressAddr: egressAddr, Logger: logger}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("pubsub proxy listening", zap.String("ingress", ingressAddr), zap.String("egress", egressAddr))
	if err := proxy.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("pubsub proxy exited", zap.Error(err))
	}
}
