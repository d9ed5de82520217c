// Package registryclient is the thin RPC stub a replica uses to talk to
// the Registry's rank/heartbeat/list service. It mirrors the lazy-dial,
// call-by-name shape of
// mcastellin-golang-mastery/remote-procedure-call/plugin.Client, adapted
// from net/rpc method calls to this module's wire.Frame request/reply
// pair over transport.MessageSink.
package registryclient

import (
	"context"
	"fmt"
	"time"

	"github.com/mcastellin/chatmesh/pkg/transport"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

// DefaultTimeout bounds every Registry RPC issued by a replica.
const DefaultTimeout = 5 * time.Second

// PeerInfo is one entry of the active-peer list returned by List.
type PeerInfo struct {
	ID       string
	Rank     uint64
	Endpoint string
}

// Client calls the Registry's rank, heartbeat, and list services through
// one MessageSink; with a *transport.RPCClient each call dials its own
// connection.
type Client struct {
	sink transport.MessageSink
}

// New wraps the given sink (typically a *transport.RPCClient pointed at
// the Registry's address).
func New(sink transport.MessageSink) *Client {
	return &Client{sink: sink}
}

// Rank registers id at endpoint (or refreshes endpoint+heartbeat if id
// is already known) and returns the assigned rank.
func (c *Client) Rank(ctx context.Context, id, endpoint string) (uint64, error) {
	reply, err := c.sink.Request(ctx, wire.Frame{
		Service: "rank",
		Data:    map[string]any{"id": id, "endpoint": endpoint},
	})
	if err != nil {
		return 0, fmt.Errorf("registryclient: rank: %w", err)
	}
	if reply.Service == "erro" {
		return 0, fmt.Errorf("registryclient: rank: %s", wire.StringField(reply.Data, "description"))
	}
	return wire.Uint64Field(reply.Data, "rank"), nil
}

// Heartbeat refreshes id's liveness window.
func (c *Client) Heartbeat(ctx context.Context, id string) error {
	reply, err := c.sink.Request(ctx, wire.Frame{
		Service: "heartbeat",
		Data:    map[string]any{"id": id},
	})
	if err != nil {
		return fmt.Errorf("registryclient: heartbeat: %w", err)
	}
	if reply.Service == "erro" {
		return fmt.Errorf("registryclient: heartbeat: %s", wire.StringField(reply.Data, "description"))
	}
	return nil
}

// List returns the currently active peer set, sorted by rank ascending.
func (c *Client) List(ctx context.Context) ([]PeerInfo, error) {
	reply, err := c.sink.Request(ctx, wire.Frame{Service: "list", Data: map[string]any{}})
	if err != nil {
		return nil, fmt.Errorf("registryclient: list: %w", err)
	}
	if reply.Service == "erro" {
		return nil, fmt.Errorf("registryclient: list: %s", wire.StringField(reply.Data, "description"))
	}

	raw := wire.ListField(reply.Data, "list")
	out := make([]PeerInfo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, PeerInfo{
			ID:       wire.StringField(m, "id"),
			Rank:     wire.Uint64Field(m, "rank"),
			Endpoint: wire.StringField(m, "endpoint"),
		})
	}
	return out, nil
}
