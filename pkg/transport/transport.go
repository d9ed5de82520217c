// Package transport implements the boundary between the coordination core
// and the message-oriented socket library the real fleet runs on (REQ/REP,
// ROUTER/DEALER, PUB/SUB). spec.md treats that library as an external
// collaborator specified only by interface; this package is that interface
// plus a concrete TCP implementation good enough to run the whole fleet
// end to end without a C binding.
//
// The interfaces below are deliberately small and mirror the "small
// interface set" redesign note: a component only ever depends on the
// interface it needs, never on a generic "socket" type.
package transport

import (
	"context"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

// MessageSource is the server side of a request/reply exchange: something
// that can accept inbound frames and reply to each one exactly once.
type MessageSource interface {
	// Serve blocks, handing every inbound frame to handler and writing back
	// whatever it returns. It returns when ctx is cancelled.
	Serve(ctx context.Context, handler RequestHandler) error
}

// RequestHandler processes one inbound frame and produces the reply frame.
type RequestHandler func(wire.Frame) wire.Frame

// MessageSink is the client side of a request/reply exchange (REQ
// semantics): send one frame, block for the matching reply.
type MessageSink interface {
	Request(ctx context.Context, req wire.Frame) (wire.Frame, error)
}

// TopicPublisher is the PUB side of the fan-out proxy.
type TopicPublisher interface {
	Publish(topic string, f wire.Frame) error
}

// TopicSubscriber is the SUB side of the fan-out proxy.
type TopicSubscriber interface {
	// Messages returns the channel of frames delivered for the topics this
	// subscriber registered for.
	Messages() <-chan TopicMessage
	Close() error
}

// TopicMessage is one delivered PubSub frame together with the topic it was
// published on.
type TopicMessage struct {
	Topic string
	Frame wire.Frame
}

// Router is the ROUTER side of a point-to-point RPC service that must
// preserve enough identity to reply to the right caller: the Registry and
// each replica's P2P listener both implement their service dispatch on top
// of a Router.
type Router interface {
	Serve(ctx context.Context, handler RequestHandler) error
	Close() error
}
