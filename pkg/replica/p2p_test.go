package replica

import (
	"testing"

	"github.com/mcastellin/chatmesh/pkg/transport"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

func newTestListener(t *testing.T, rank uint64) *P2PListener {
	t.Helper()
	state := NewState("replica-a")
	state.Rank = rank
	pipeline, _ := newTestPipeline(t)
	pipeline.state = state
	election := NewElection(state, nil, nil, nil)
	return NewP2PListener(state, pipeline, election, nil, nil, nil)
}

func TestHandleRPCElectionRepliesOK(t *testing.T) {
	l := newTestListener(t, 5)
	reply := l.handleRPC(wire.Frame{Service: "election", Data: map[string]any{"rank": uint64(1)}})

	if reply.Service != "election" {
		t.Fatalf("service: got %q", reply.Service)
	}
	if wire.StringField(reply.Data, "election") != "OK" {
		t.Fatalf("expected election:OK, got %+v", reply.Data)
	}
}

func TestHandleRPCClockRepliesWithTime(t *testing.T) {
	l := newTestListener(t, 5)
	reply := l.handleRPC(wire.Frame{Service: "clock", Data: map[string]any{}})

	if reply.Service != "clock" {
		t.Fatalf("service: got %q", reply.Service)
	}
	if _, ok := reply.Data["time"]; !ok {
		t.Fatal("expected a time field in the clock reply")
	}
}

func TestHandleRPCUnknownService(t *testing.T) {
	l := newTestListener(t, 5)
	reply := l.handleRPC(wire.Frame{Service: "bogus", Data: map[string]any{}})
	if reply.Service != "erro" {
		t.Fatalf("expected erro for an unknown p2p service, got %q", reply.Service)
	}
}

func TestHandleTopicMessageServersUpdatesCoordinator(t *testing.T) {
	l := newTestListener(t, 5)
	l.handleTopicMessage(transport.TopicMessage{
		Topic: "servers",
		Frame: wire.Frame{Service: "election", Data: map[string]any{"coordinator": "replica-z"}},
	})

	if got := l.state.Coordinator(); got != "replica-z" {
		t.Fatalf("coordinator: got %q, want replica-z", got)
	}
}

func TestHandleTopicMessageReplicationAppliesWrite(t *testing.T) {
	l := newTestListener(t, 5)
	l.handleTopicMessage(transport.TopicMessage{
		Topic: "replication",
		Frame: wire.Frame{Service: "login", Data: map[string]any{"user": "alice"}},
	})

	if !l.pipeline.store.HasUser("alice") {
		t.Fatal("expected replication apply to insert alice")
	}
}
