package replica

import (
	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/transport"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

// Pipeline is the replica's client request pipeline (spec.md §4.2): it
// decodes a request, advances the Lamport clock, dispatches to the
// matching service handler, replicates successful writes, fans out chat
// traffic, and encodes the reply. It is bound to a transport.Router (the
// Command Broker's worker-side connection) as a transport.RequestHandler.
type Pipeline struct {
	state     *State
	store     *Store
	publisher transport.TopicPublisher
	logger    *zap.Logger

	onSyncDue func() // scheduled when the message-count trigger fires
}

// NewPipeline wires a Pipeline against the given replica state, local
// store, and PubSub publisher used for both the replication topic and
// user-visible chat topics. onSyncDue is invoked on a new goroutine, so
// Handle does not wait for it, whenever the message counter reaches
// MsgCountTrigger on a non-coordinator replica; pass nil to disable.
func NewPipeline(state *State, store *Store, publisher transport.TopicPublisher, logger *zap.Logger, onSyncDue func()) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{state: state, store: store, publisher: publisher, logger: logger, onSyncDue: onSyncDue}
}

// Handle implements transport.RequestHandler. It never panics on
// malformed input; decode/protocol/state errors all produce an erro
// reply instead of aborting the loop (spec.md §7).
func (p *Pipeline) Handle(req wire.Frame) wire.Frame {
	p.state.Clock().Observe(wire.Uint64Field(req.Data, "clock"))

	triggered := p.state.IncrementMessageCount()
	if triggered && !p.state.IsCoordinator() && p.onSyncDue != nil {
		go p.onSyncDue()
	}

	stamp := p.state.Clock().Tick()

	var data map[string]any
	switch req.Service {
	case "login":
		data = p.dispatchWrite(req, p.handleLogin(req))
	case "channel":
		data = p.dispatchWrite(req, p.handleChannel(req))
	case "publish":
		data = p.dispatchWrite(req, p.handlePublish(req, stamp))
	case "message":
		data = p.dispatchWrite(req, p.handleMessage(req, stamp))
	case "users":
		data = p.handleUsers()
	case "channels":
		data = p.handleChannels()
	default:
		data = errorData("unknown service: " + req.Service)
	}

	service := req.Service
	if data["status"] == "erro" {
		service = "erro"
	}

	data["clock"] = stamp
	data["timestamp"] = nowISO()
	return wire.Frame{Service: service, Data: data}
}

// dispatchWrite executes a write outcome: on success it emits the
// replication frame and, for publish/message, the chat fan-out frame.
func (p *Pipeline) dispatchWrite(req wire.Frame, outcome writeOutcome) map[string]any {
	if outcome.replicate && p.publisher != nil {
		if err := p.publisher.Publish("replication", req); err != nil {
			p.logger.Warn("failed to publish replication frame", zap.Error(err), zap.String("service", req.Service))
		}
	}
	if outcome.chatTopic != "" && p.publisher != nil {
		chatFrame := wire.Frame{Service: req.Service, Data: outcome.chatPayload}
		if err := p.publisher.Publish(outcome.chatTopic, chatFrame); err != nil {
			p.logger.Warn("failed to publish chat frame", zap.Error(err), zap.String("topic", outcome.chatTopic))
		}
	}
	return outcome.replyData
}
