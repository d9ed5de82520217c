package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

func availableAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not allocate port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestRPCServerClientRoundTrip(t *testing.T) {
	addr := availableAddr(t)

	srv := &RPCServer{Addr: addr}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.Serve(ctx, func(req wire.Frame) wire.Frame {
			return wire.Frame{
				Service: req.Service,
				Data:    map[string]any{"echo": wire.StringField(req.Data, "msg")},
			}
		})
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)

	client := &RPCClient{Addr: addr, Timeout: time.Second}
	reply, err := client.Request(context.Background(), wire.Frame{
		Service: "ping",
		Data:    map[string]any{"msg": "hello"},
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply.Service != "ping" {
		t.Fatalf("service: got %q", reply.Service)
	}
	if got := wire.StringField(reply.Data, "echo"); got != "hello" {
		t.Fatalf("echo: got %q", got)
	}
}

func TestRPCClientTimesOutOnUnreachableServer(t *testing.T) {
	client := &RPCClient{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond}
	_, err := client.Request(context.Background(), wire.Frame{Service: "ping", Data: map[string]any{}})
	if err == nil {
		t.Fatal("expected error dialing unreachable server")
	}
}
