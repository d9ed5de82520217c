package replica

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mcastellin/chatmesh/pkg/registry"
	"github.com/mcastellin/chatmesh/pkg/transport"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not allocate a port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

// TestReplicaEndToEndLoginThroughBroker wires a Registry, a
// CommandBroker, a PubSubProxy, and one Replica together and exercises
// the S1/S5-style path: a client request relayed through the broker
// reaches the replica's pipeline, is applied, and the replica is
// visible in the registry's active list.
func TestReplicaEndToEndLoginThroughBroker(t *testing.T) {
	registryAddr := freeAddr(t)
	brokerClientAddr := freeAddr(t)
	brokerWorkerAddr := freeAddr(t)
	pubsubIngress := freeAddr(t)
	pubsubEgress := freeAddr(t)
	p2pAddr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	regSvc := registry.NewService(registry.New(), nil)
	regRouter := &transport.RPCServer{Addr: registryAddr}
	go regRouter.Serve(ctx, regSvc.Handle)

	broker := &transport.CommandBroker{ClientAddr: brokerClientAddr, WorkerAddr: brokerWorkerAddr}
	go broker.Serve(ctx)

	proxy := &transport.PubSubProxy{IngressAddr: pubsubIngress, EgressAddr: pubsubEgress}
	go proxy.Serve(ctx)

	time.Sleep(100 * time.Millisecond)

	rep, err := New(Config{
		ID:             "replica-a",
		DataDir:        t.TempDir(),
		BrokerAddr:     brokerWorkerAddr,
		P2PAddr:        p2pAddr,
		PubSubIngress:  pubsubIngress,
		PubSubEgress:   pubsubEgress,
		RegistryAddr:   registryAddr,
		HeartbeatEvery: 50 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go rep.Run(ctx)

	time.Sleep(300 * time.Millisecond)

	client := &transport.RPCClient{Addr: brokerClientAddr, Timeout: 2 * time.Second}
	reply, err := client.Request(context.Background(), wire.Frame{
		Service: "login",
		Data:    map[string]any{"user": "alice"},
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if wire.StringField(reply.Data, "status") != "ok" {
		t.Fatalf("login failed: %+v", reply.Data)
	}

	if !rep.store.HasUser("alice") {
		t.Fatal("expected the replica's store to contain alice")
	}
	if rep.state.Rank == 0 {
		t.Fatal("expected the replica to have registered a rank with the registry")
	}
}
