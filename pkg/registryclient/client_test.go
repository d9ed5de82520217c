package registryclient

import (
	"context"
	"testing"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

type fakeSink struct {
	fn func(req wire.Frame) (wire.Frame, error)
}

func (f *fakeSink) Request(ctx context.Context, req wire.Frame) (wire.Frame, error) {
	return f.fn(req)
}

func TestRankReturnsAssignedRank(t *testing.T) {
	sink := &fakeSink{fn: func(req wire.Frame) (wire.Frame, error) {
		if req.Service != "rank" || wire.StringField(req.Data, "id") != "alice" {
			t.Fatalf("unexpected request: %+v", req)
		}
		return wire.Frame{Service: "rank", Data: map[string]any{"rank": uint64(3)}}, nil
	}}

	c := New(sink)
	rank, err := c.Rank(context.Background(), "alice", "127.0.0.1:9001")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if rank != 3 {
		t.Fatalf("rank: got %d, want 3", rank)
	}
}

func TestHeartbeatSurfacesRegistryError(t *testing.T) {
	sink := &fakeSink{fn: func(req wire.Frame) (wire.Frame, error) {
		return wire.Frame{Service: "erro", Data: map[string]any{"description": "not registered: ghost"}}, nil
	}}

	c := New(sink)
	if err := c.Heartbeat(context.Background(), "ghost"); err == nil {
		t.Fatal("expected an error for an unregistered id")
	}
}

func TestListParsesPeerEntries(t *testing.T) {
	sink := &fakeSink{fn: func(req wire.Frame) (wire.Frame, error) {
		list := []any{
			map[string]any{"id": "alice", "rank": uint64(1), "endpoint": "a"},
			map[string]any{"id": "bob", "rank": uint64(2), "endpoint": "b"},
		}
		return wire.Frame{Service: "list", Data: map[string]any{"list": list}}, nil
	}}

	c := New(sink)
	peers, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(peers) != 2 || peers[1].ID != "bob" {
		t.Fatalf("unexpected peers: %+v", peers)
	}
}
