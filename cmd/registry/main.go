package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/admin"
	"github.com/mcastellin/chatmesh/pkg/banner"
	"github.com/mcastellin/chatmesh/pkg/registry"
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

	addr := envOr("REGISTRY_ADDR", ":5560")
	adminAddr := envOr("REGISTRY_ADMIN_ADDR", ":5561")

	reg := registry.New()
	svc := registry.NewService(reg, logger)
	router := &transport.RPCServer{Addr: addr, Logger: logger}

	fmt.Println(banner.Render("chatmesh registry",
		banner.Field{Label: "router", Value: addr},
		banner.Field{Label: "admin", Value: adminAddr},
	))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		engine := admin.NewEngine(reg)
		if err := engine.Run(adminAddr); err != nil {
			logger.Warn("admin http server exited", zap.Error(err))
		}
	}()

	logger.Info("registry listening", zap.String("addr", addr))
	if err := router.Serve(ctx, svc.Handle); err != nil && ctx.Err() == nil {
		logger.Fatal("registry router exited", zap.Error(err))
	}
}
