package replica

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/registryclient"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

// ElectionTimeout bounds one full election round (spec.md glossary).
const ElectionTimeout = 2 * time.Second

// peerTimeout is the per-peer send+receive budget within one election
// round (ELECTION_TIMEOUT/2).
const peerTimeout = ElectionTimeout / 2

// PeerDialer opens a request socket to a peer's P2P endpoint. The
// concrete binding (e.g. *transport.RPCClient) is a boundary concern;
// Election depends only on the transport.MessageSink it returns.
type PeerDialer func(endpoint string) MessageSink

// MessageSink is a local alias of transport.MessageSink so this file
// does not need to import transport just to express PeerDialer; any
// *transport.RPCClient satisfies it.
type MessageSink interface {
	Request(ctx context.Context, req wire.Frame) (wire.Frame, error)
}

// Announcer publishes the coordinator-announcement frame on the servers
// topic. Any transport.TopicPublisher satisfies it.
type Announcer interface {
	Publish(topic string, f wire.Frame) error
}

// Election implements the bully election protocol (spec.md §4.5). It is
// invoked either when the heartbeat driver believes the coordinator is
// gone, or when a lower-ranked peer's election RPC triggers bully
// recursion on this replica (§4.3).
type Election struct {
	state    *State
	dial     PeerDialer
	announce Announcer
	logger   *zap.Logger
}

// NewElection wires an Election against the given replica state, peer
// dialer, and servers-topic announcer.
func NewElection(state *State, dial PeerDialer, announce Announcer, logger *zap.Logger) *Election {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Election{state: state, dial: dial, announce: announce, logger: logger}
}

// Attempt runs one election round under the election lock. If the lock
// is already held, the call is a no-op: the design notes require at
// most one election attempt in flight per replica at any moment.
func (e *Election) Attempt(ctx context.Context) {
	if !e.state.TryAcquireElectionLock() {
		return
	}
	defer e.state.ReleaseElectionLock()

	higher := e.state.HigherRankedPeers(e.state.Rank)
	if len(higher) == 0 {
		e.selfWin()
		return
	}

	roundCtx, cancel := context.WithTimeout(ctx, ElectionTimeout)
	defer cancel()

	if e.anyHigherPeerAnswered(roundCtx, higher) {
		e.logger.Debug("conceding election", zap.Uint64("rank", e.state.Rank))
		return
	}
	e.selfWin()
}

// anyHigherPeerAnswered sends election(rank) to every peer in higher
// concurrently and reports whether at least one replied {election: OK}
// within the round's deadline.
func (e *Election) anyHigherPeerAnswered(ctx context.Context, higher []registryclient.PeerInfo) bool {
	if e.dial == nil {
		return false
	}

	results := make(chan bool, len(higher))
	for _, peer := range higher {
		peer := peer
		go func() {
			results <- e.askPeer(ctx, peer)
		}()
	}

	answered := false
	for range higher {
		select {
		case ok := <-results:
			if ok {
				answered = true
			}
		case <-ctx.Done():
			return answered
		}
	}
	return answered
}

func (e *Election) askPeer(ctx context.Context, peer registryclient.PeerInfo) bool {
	peerCtx, cancel := context.WithTimeout(ctx, peerTimeout)
	defer cancel()

	sink := e.dial(peer.Endpoint)
	reply, err := sink.Request(peerCtx, wire.Frame{
		Service: "election",
		Data:    map[string]any{"rank": e.state.Rank, "clock": e.state.Clock().Tick()},
	})
	if err != nil {
		e.logger.Debug("election rpc failed, treating as no answer", zap.String("peer", peer.ID), zap.Error(err))
		return false
	}
	e.state.Clock().Observe(wire.Uint64Field(reply.Data, "clock"))
	return wire.StringField(reply.Data, "election") == "OK"
}

// selfWin binds the coordinator to self and broadcasts the announcement
// on the servers topic.
func (e *Election) selfWin() {
	e.state.SetCoordinator(e.state.ID)
	if e.announce == nil {
		return
	}
	frame := wire.Frame{
		Service: "election",
		Data:    map[string]any{"coordinator": e.state.ID, "clock": e.state.Clock().Tick()},
	}
	if err := e.announce.Publish("servers", frame); err != nil {
		e.logger.Warn("failed to announce coordinator win", zap.Error(err))
	}
}
