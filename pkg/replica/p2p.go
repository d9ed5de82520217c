package replica

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/transport"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

// P2PListener is the replica's P2P service (spec.md §4.3): a ROUTER
// endpoint answering direct peer RPCs (election, clock) and a PubSub
// subscription to the servers and replication topics. A single
// cooperative loop drives the subscription side; the ROUTER side is
// driven by the transport.Router implementation's own accept loop.
type P2PListener struct {
	state    *State
	pipeline *Pipeline
	election *Election

	router     transport.Router
	subscriber transport.TopicSubscriber

	logger *zap.Logger
}

// NewP2PListener wires a P2PListener. router is the bound ROUTER socket
// for this replica's P2P endpoint; subscriber is already connected to
// the servers and replication topics on the PubSub proxy.
func NewP2PListener(state *State, pipeline *Pipeline, election *Election, router transport.Router, subscriber transport.TopicSubscriber, logger *zap.Logger) *P2PListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &P2PListener{state: state, pipeline: pipeline, election: election, router: router, subscriber: subscriber, logger: logger}
}

// Serve runs the ROUTER accept loop and the topic-subscription drain
// loop concurrently until ctx is canceled or the router fails.
func (l *P2PListener) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- l.router.Serve(ctx, l.handleRPC) }()
	go l.drainTopics(ctx)

	select {
	case <-ctx.Done():
		_ = l.router.Close()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleRPC answers the two ROUTER-side services: election and clock.
func (l *P2PListener) handleRPC(req wire.Frame) wire.Frame {
	l.state.Clock().Observe(wire.Uint64Field(req.Data, "clock"))
	stamp := l.state.Clock().Tick()

	var data map[string]any
	service := req.Service
	switch req.Service {
	case "election":
		senderRank := wire.Uint64Field(req.Data, "rank")
		data = map[string]any{"election": "OK"}
		if l.state.Rank > senderRank {
			go l.election.Attempt(context.Background())
		}
	case "clock":
		data = map[string]any{"time": time.Now().UnixNano()}
	default:
		service = "erro"
		data = errorData("unknown p2p service: " + req.Service)
	}

	data["clock"] = stamp
	data["timestamp"] = nowISO()
	return wire.Frame{Service: service, Data: data}
}

// drainTopics consumes the servers/replication subscription until ctx
// is canceled. If the subscription's message channel closes (the
// connection to the proxy dropped), the loop returns without logging; it
// does not resubscribe.
func (l *P2PListener) drainTopics(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = l.subscriber.Close()
			return
		case msg, ok := <-l.subscriber.Messages():
			if !ok {
				return
			}
			l.handleTopicMessage(msg)
		}
	}
}

func (l *P2PListener) handleTopicMessage(msg transport.TopicMessage) {
	l.state.Clock().Observe(wire.Uint64Field(msg.Frame.Data, "clock"))

	switch msg.Topic {
	case "servers":
		if msg.Frame.Service != "election" {
			return
		}
		coordinator := wire.StringField(msg.Frame.Data, "coordinator")
		if coordinator == "" {
			return
		}
		l.state.SetCoordinator(coordinator)
		l.logger.Info("observed coordinator announcement", zap.String("coordinator", coordinator))
	case "replication":
		// The replication frame carries the original client request
		// verbatim (spec.md §4.6): its own service/data pair is what
		// the replay handler applies.
		l.pipeline.ApplyReplicated(msg.Frame)
	}
}
