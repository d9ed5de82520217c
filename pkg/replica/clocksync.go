package replica

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/clock"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

// ClockSyncTimeout is the RTT cap for one Christian's-algorithm round
// trip (spec.md §4.7).
const ClockSyncTimeout = 2 * time.Second

// ClockSyncer runs the clock-sync ephemeral task triggered by the
// request pipeline's message counter (spec.md §4.2 step 3, §4.7). It
// resolves the coordinator's P2P endpoint from ActivePeers, opens a
// bounded request, and records the resulting offset on State.
type ClockSyncer struct {
	state  *State
	dial   PeerDialer
	logger *zap.Logger
}

// NewClockSyncer wires a ClockSyncer against the given state and peer
// dialer.
func NewClockSyncer(state *State, dial PeerDialer, logger *zap.Logger) *ClockSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClockSyncer{state: state, dial: dial, logger: logger}
}

// Sync resolves the coordinator endpoint and performs one round trip.
// Any failure (unknown coordinator, transport error) aborts cleanly and
// is logged; per spec.md §4.2 step 3 the message counter has already
// been reset by the pipeline regardless of outcome.
func (c *ClockSyncer) Sync(ctx context.Context) {
	endpoint, ok := c.state.CoordinatorEndpoint()
	if !ok {
		c.logger.Debug("clock sync aborted: coordinator endpoint unknown")
		return
	}
	if c.dial == nil {
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, ClockSyncTimeout)
	defer cancel()

	sink := c.dial(endpoint)

	t0 := time.Now().UnixNano()
	reply, err := sink.Request(syncCtx, wire.Frame{
		Service: "clock",
		Data:    map[string]any{"clock": c.state.Clock().Tick()},
	})
	t1 := time.Now().UnixNano()
	if err != nil {
		c.logger.Debug("clock sync rpc failed", zap.Error(err))
		return
	}
	c.state.Clock().Observe(wire.Uint64Field(reply.Data, "clock"))

	coordinatorTime, ok := reply.Data["time"].(int64)
	if !ok {
		c.logger.Warn("clock sync reply missing time field")
		return
	}

	result := clock.EstimateFromRoundTrip(time.Duration(t0), time.Duration(t1), time.Duration(coordinatorTime))
	c.state.RecordClockOffset(int64(result.Offset))
	c.logger.Debug("recorded clock offset", zap.Duration("offset", result.Offset), zap.Duration("round_trip", result.RoundTrip))
}
