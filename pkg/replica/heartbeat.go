package replica

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/registryclient"
)

// HeartbeatInterval is the cadence of Registry heartbeat/list round
// trips (spec.md glossary).
const HeartbeatInterval = 15 * time.Second

// RegistryAPI is the subset of registryclient.Client the driver needs.
// Declared locally so tests can substitute a fake without reaching into
// the registryclient package's transport wiring.
type RegistryAPI interface {
	Rank(ctx context.Context, id, endpoint string) (uint64, error)
	Heartbeat(ctx context.Context, id string) error
	List(ctx context.Context) ([]registryclient.PeerInfo, error)
}

// HeartbeatDriver is the dedicated per-replica cooperative task that
// registers with the Registry, then loops: sleep, heartbeat, refresh
// the active-peer list, and trigger an election attempt if the bound
// coordinator looks dead (spec.md §4.4). It follows the teacher's
// Run()/Stop() worker lifecycle: Run performs one tick synchronously,
// starts the loop in the background and returns; Stop blocks until the
// loop has exited.
type HeartbeatDriver struct {
	state    *State
	registry RegistryAPI
	election *Election
	logger   *zap.Logger

	interval   time.Duration
	shutdown   chan chan error
	done       chan struct{}
	regBackoff *registrationBackoff
}

// NewHeartbeatDriver wires a HeartbeatDriver. interval overrides
// HeartbeatInterval when nonzero, for tests.
func NewHeartbeatDriver(state *State, registry RegistryAPI, election *Election, logger *zap.Logger, interval time.Duration) *HeartbeatDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval == 0 {
		interval = HeartbeatInterval
	}
	return &HeartbeatDriver{
		state: state, registry: registry, election: election, logger: logger, interval: interval,
		regBackoff: newRegistrationBackoff(time.Second, 2, interval),
	}
}

// Register performs the once-before-the-loop rank request (spec.md
// §4.4). On failure it logs and returns the error; per the resolved
// open question (see DESIGN.md) the caller retries registration from
// the next heartbeat tick rather than blocking startup.
func (d *HeartbeatDriver) Register(ctx context.Context) error {
	rank, err := d.registry.Rank(ctx, d.state.ID, d.state.Endpoint)
	if err != nil {
		d.regBackoff.Failed()
		d.logger.Warn("rank registration failed, backing off before retry", zap.Error(err))
		return err
	}
	d.regBackoff.Reset()
	d.state.Rank = rank
	d.logger.Info("registered with registry", zap.Uint64("rank", rank))
	return nil
}

// Run performs the once-before-the-loop registration tick immediately
// (spec.md §4.4), then starts the heartbeat/election loop in the
// background. time.NewTicker does not fire until the first interval
// elapses, so without this the initial registration would be delayed
// by a full interval, the same reason pkg/clock.NTPChecker.Run calls
// check() before starting its own ticker.
func (d *HeartbeatDriver) Run(ctx context.Context) error {
	d.shutdown = make(chan chan error)
	d.done = make(chan struct{})

	d.tick(ctx)

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		defer close(d.done)

		for {
			select {
			case errCh := <-d.shutdown:
				errCh <- nil
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.tick(ctx)
			}
		}
	}()
	return nil
}

// Stop blocks until the running loop has exited. If the loop has already
// exited (ctx was canceled, or Stop was called before), it returns nil.
func (d *HeartbeatDriver) Stop() error {
	if d.shutdown == nil {
		return nil
	}
	errCh := make(chan error)
	select {
	case d.shutdown <- errCh:
		return <-errCh
	case <-d.done:
		return nil
	}
}

// tick executes one heartbeat cycle: heartbeat, refresh ActivePeers, and
// conditionally trigger an election. Registry errors are logged and
// skipped; the next tick retries (spec.md §7 coordination-error policy).
func (d *HeartbeatDriver) tick(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, d.interval/2)
	defer cancel()

	if d.state.Rank == 0 {
		if !d.regBackoff.Ready() {
			return
		}
		if err := d.Register(reqCtx); err != nil {
			return
		}
	}

	if err := d.registry.Heartbeat(reqCtx, d.state.ID); err != nil {
		d.logger.Warn("heartbeat failed", zap.Error(err))
		return
	}

	peers, err := d.registry.List(reqCtx)
	if err != nil {
		d.logger.Warn("list failed", zap.Error(err))
		return
	}
	d.state.SetActivePeers(peers)

	if d.state.Coordinator() == "" || !d.state.CoordinatorIsLive() {
		go d.election.Attempt(ctx)
	}
}
