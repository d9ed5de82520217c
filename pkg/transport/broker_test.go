package transport

import (
	"context"
	"testing"
	"time"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

func TestCommandBrokerRelaysToWorker(t *testing.T) {
	clientAddr := availableAddr(t)
	workerAddr := availableAddr(t)

	broker := &CommandBroker{ClientAddr: clientAddr, WorkerAddr: workerAddr}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broker.Serve(ctx)
	time.Sleep(50 * time.Millisecond)

	worker := &WorkerClient{Addr: workerAddr}
	go worker.Serve(ctx, func(req wire.Frame) wire.Frame {
		return wire.Frame{Service: req.Service, Data: map[string]any{"status": "ok"}}
	})
	time.Sleep(100 * time.Millisecond)

	client := &RPCClient{Addr: clientAddr, Timeout: 2 * time.Second}
	reply, err := client.Request(context.Background(), wire.Frame{Service: "login", Data: map[string]any{"user": "alice"}})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply.Service != "login" {
		t.Fatalf("service: got %q", reply.Service)
	}
	if got := wire.StringField(reply.Data, "status"); got != "ok" {
		t.Fatalf("status: got %q", got)
	}
}

func TestCommandBrokerTimesOutWithoutWorkers(t *testing.T) {
	clientAddr := availableAddr(t)
	workerAddr := availableAddr(t)

	broker := &CommandBroker{ClientAddr: clientAddr, WorkerAddr: workerAddr}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broker.Serve(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &RPCClient{Addr: clientAddr, Timeout: 500 * time.Millisecond}
	_, err := client.Request(context.Background(), wire.Frame{Service: "login", Data: map[string]any{}})
	if err == nil {
		t.Fatal("expected an error or timeout with no replica workers connected")
	}
}
