package replica

import (
	"context"
	"testing"

	"github.com/mcastellin/chatmesh/pkg/registryclient"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

type fakeAnnouncer struct {
	published []wire.Frame
}

func (f *fakeAnnouncer) Publish(topic string, fr wire.Frame) error {
	f.published = append(f.published, fr)
	return nil
}

type fakeSinkFn func(ctx context.Context, req wire.Frame) (wire.Frame, error)

func (f fakeSinkFn) Request(ctx context.Context, req wire.Frame) (wire.Frame, error) {
	return f(ctx, req)
}

func TestElectionSelfWinWithNoHigherPeers(t *testing.T) {
	state := NewState("replica-a")
	state.Rank = 3
	announcer := &fakeAnnouncer{}
	e := NewElection(state, nil, announcer, nil)

	e.Attempt(context.Background())

	if state.Coordinator() != "replica-a" {
		t.Fatalf("coordinator: got %q, want replica-a", state.Coordinator())
	}
	if len(announcer.published) != 1 {
		t.Fatalf("expected exactly one announcement, got %d", len(announcer.published))
	}
	if wire.StringField(announcer.published[0].Data, "coordinator") != "replica-a" {
		t.Fatalf("announcement payload: %+v", announcer.published[0].Data)
	}
}

func TestElectionConcedesWhenHigherPeerAnswers(t *testing.T) {
	state := NewState("replica-a")
	state.Rank = 1
	state.SetActivePeers([]registryclient.PeerInfo{{ID: "replica-b", Rank: 2, Endpoint: "127.0.0.1:1"}})

	dial := func(endpoint string) MessageSink {
		return fakeSinkFn(func(ctx context.Context, req wire.Frame) (wire.Frame, error) {
			return wire.Frame{Service: "election", Data: map[string]any{"election": "OK", "clock": uint64(1)}}, nil
		})
	}
	announcer := &fakeAnnouncer{}
	e := NewElection(state, dial, announcer, nil)

	e.Attempt(context.Background())

	if state.Coordinator() == "replica-a" {
		t.Fatal("expected replica-a to concede, not self-win")
	}
	if len(announcer.published) != 0 {
		t.Fatal("a conceding replica must not announce itself as coordinator")
	}
}

func TestElectionSelfWinWhenHigherPeerUnreachable(t *testing.T) {
	state := NewState("replica-a")
	state.Rank = 1
	state.SetActivePeers([]registryclient.PeerInfo{{ID: "replica-b", Rank: 2, Endpoint: "127.0.0.1:1"}})

	dial := func(endpoint string) MessageSink {
		return fakeSinkFn(func(ctx context.Context, req wire.Frame) (wire.Frame, error) {
			return wire.Frame{}, context.DeadlineExceeded
		})
	}
	announcer := &fakeAnnouncer{}
	e := NewElection(state, dial, announcer, nil)

	e.Attempt(context.Background())

	if state.Coordinator() != "replica-a" {
		t.Fatalf("expected self-win when no higher peer answers, coordinator=%q", state.Coordinator())
	}
}

func TestElectionLockPreventsConcurrentAttempts(t *testing.T) {
	state := NewState("replica-a")
	if !state.TryAcquireElectionLock() {
		t.Fatal("expected the first acquisition to succeed")
	}

	e := NewElection(state, nil, &fakeAnnouncer{}, nil)
	e.Attempt(context.Background())

	if state.Coordinator() != "" {
		t.Fatal("Attempt should have been a no-op while the election lock was already held")
	}
}
