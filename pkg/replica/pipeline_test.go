package replica

import (
	"testing"
	"time"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

type recordingPublisher struct {
	published []struct {
		topic string
		frame wire.Frame
	}
}

func (r *recordingPublisher) Publish(topic string, f wire.Frame) error {
	r.published = append(r.published, struct {
		topic string
		frame wire.Frame
	}{topic, f})
	return nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *recordingPublisher) {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	pub := &recordingPublisher{}
	p := NewPipeline(NewState("replica-a"), store, pub, nil, nil)
	return p, pub
}

func TestPipelineLoginInsertsAndReplicates(t *testing.T) {
	p, pub := newTestPipeline(t)

	reply := p.Handle(wire.Frame{Service: "login", Data: map[string]any{"user": "alice"}})
	if reply.Service != "login" {
		t.Fatalf("service: got %q", reply.Service)
	}
	if wire.StringField(reply.Data, "status") != "ok" {
		t.Fatalf("status: got %+v", reply.Data)
	}

	foundReplication := false
	for _, msg := range pub.published {
		if msg.topic == "replication" {
			foundReplication = true
		}
	}
	if !foundReplication {
		t.Fatal("expected a replication frame to be published")
	}
}

func TestPipelineLoginDuplicateReturnsError(t *testing.T) {
	p, _ := newTestPipeline(t)

	p.Handle(wire.Frame{Service: "login", Data: map[string]any{"user": "alice"}})
	reply := p.Handle(wire.Frame{Service: "login", Data: map[string]any{"user": "alice"}})

	if reply.Service != "erro" {
		t.Fatalf("service: got %q, want erro", reply.Service)
	}
}

func TestPipelinePublishRejectsUnknownChannel(t *testing.T) {
	p, _ := newTestPipeline(t)

	reply := p.Handle(wire.Frame{Service: "publish", Data: map[string]any{"channel": "ghost", "user": "alice", "message": "hi"}})
	if reply.Service != "erro" {
		t.Fatalf("expected erro for publish to an unknown channel, got %q", reply.Service)
	}
}

func TestPipelinePublishFanOutTopics(t *testing.T) {
	p, pub := newTestPipeline(t)

	p.Handle(wire.Frame{Service: "channel", Data: map[string]any{"channel": "general"}})
	reply := p.Handle(wire.Frame{Service: "publish", Data: map[string]any{"channel": "general", "user": "alice", "message": "hi"}})

	if wire.StringField(reply.Data, "status") != "ok" {
		t.Fatalf("publish failed: %+v", reply.Data)
	}

	var sawReplication, sawChat bool
	for _, msg := range pub.published {
		if msg.topic == "replication" && msg.frame.Service == "publish" {
			sawReplication = true
		}
		if msg.topic == "general" {
			sawChat = true
			if wire.StringField(msg.frame.Data, "message") != "hi" {
				t.Fatalf("chat payload: %+v", msg.frame.Data)
			}
		}
	}
	if !sawReplication || !sawChat {
		t.Fatalf("expected both a replication and a chat frame, got %+v", pub.published)
	}
}

func TestPipelineMessageRejectsUnknownUser(t *testing.T) {
	p, _ := newTestPipeline(t)

	reply := p.Handle(wire.Frame{Service: "message", Data: map[string]any{"dst": "ghost", "src": "alice", "message": "hi"}})
	if reply.Service != "erro" {
		t.Fatalf("expected erro for a message to an unknown user, got %q", reply.Service)
	}
}

func TestPipelineClockAdvancesOnEveryRequest(t *testing.T) {
	p, _ := newTestPipeline(t)

	first := p.Handle(wire.Frame{Service: "users", Data: map[string]any{}})
	second := p.Handle(wire.Frame{Service: "users", Data: map[string]any{}})

	c1 := wire.Uint64Field(first.Data, "clock")
	c2 := wire.Uint64Field(second.Data, "clock")
	if c2 <= c1 {
		t.Fatalf("expected clock to advance: %d -> %d", c1, c2)
	}
}

func TestPipelineTriggersClockSyncOnMessageCount(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	triggered := make(chan struct{}, 1)
	state := NewState("replica-a")
	p := NewPipeline(state, store, &recordingPublisher{}, nil, func() { triggered <- struct{}{} })

	for i := 0; i < MsgCountTrigger; i++ {
		p.Handle(wire.Frame{Service: "users", Data: map[string]any{}})
	}

	select {
	case <-triggered:
	case <-time.After(time.Second):
		t.Fatal("expected the clock-sync callback to fire after MsgCountTrigger requests")
	}
}
