package replica

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/registryclient"
	"github.com/mcastellin/chatmesh/pkg/transport"
)

// Config gathers every externally supplied address and identity a
// Replica needs to bind its sockets and register with the fleet.
type Config struct {
	ID             string
	DataDir        string
	BrokerAddr     string // Command Broker's worker-facing DEALER endpoint
	P2PAddr        string // this replica's own ROUTER bind address
	PubSubIngress  string // PubSub proxy ingress (publish side)
	PubSubEgress   string // PubSub proxy egress (subscribe side)
	RegistryAddr   string
	HeartbeatEvery time.Duration // overrides HeartbeatInterval when nonzero, for tests
}

// Replica wires together every component in this package into the one
// runnable process described by spec.md §5: the request pipeline, the
// P2P listener, and the heartbeat/election driver, sharing one State
// record.
type Replica struct {
	cfg    Config
	logger *zap.Logger

	state    *State
	store    *Store
	pipeline *Pipeline
	election *Election
	driver   *HeartbeatDriver
	listener *P2PListener

	worker     *transport.WorkerClient
	p2pRouter  *transport.RPCServer
	subscriber *transport.Subscriber
	publisher  *transport.Publisher

	workerErrCh chan error
}

// New builds a Replica from Config. It opens the local store eagerly
// (a missing or corrupt persisted file is not a startup failure, per
// Store's own load semantics) but does not bind any sockets or contact
// the Registry until Run is called.
func New(cfg Config, logger *zap.Logger) (*Replica, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	state := NewState(cfg.ID)
	state.Endpoint = cfg.P2PAddr

	publisher := &transport.Publisher{Addr: cfg.PubSubIngress}
	subscriber := &transport.Subscriber{Addr: cfg.PubSubEgress, Topics: []string{"servers", "replication"}}

	pipeline := NewPipeline(state, store, publisher, logger, nil)

	dial := func(endpoint string) MessageSink {
		return &transport.RPCClient{Addr: endpoint, Timeout: peerTimeout}
	}
	election := NewElection(state, dial, publisher, logger)
	pipeline.onSyncDue = func() {
		syncer := NewClockSyncer(state, dial, logger)
		syncer.Sync(context.Background())
	}

	registryAPI := registryclient.New(&transport.RPCClient{Addr: cfg.RegistryAddr, Timeout: registryclient.DefaultTimeout})
	driver := NewHeartbeatDriver(state, registryAPI, election, logger, cfg.HeartbeatEvery)

	p2pRouter := &transport.RPCServer{Addr: cfg.P2PAddr, Logger: logger}
	listener := NewP2PListener(state, pipeline, election, p2pRouter, subscriber, logger)

	return &Replica{
		cfg:        cfg,
		logger:     logger,
		state:      state,
		store:      store,
		pipeline:   pipeline,
		election:   election,
		driver:     driver,
		listener:   listener,
		worker:     &transport.WorkerClient{Addr: cfg.BrokerAddr, Logger: logger},
		p2pRouter:  p2pRouter,
		subscriber: subscriber,
		publisher:  publisher,
	}, nil
}

// Run starts every background task: it subscribes to the PubSub topics,
// binds the P2P ROUTER, starts the heartbeat/election driver, and serves
// client commands from the Command Broker. It blocks until ctx is
// canceled; WorkerClient.Serve redials the broker on its own and only
// returns once ctx is done, so workerErrCh exists purely to let shutdown
// happen as soon as either signal fires.
func (r *Replica) Run(ctx context.Context) error {
	if err := r.subscriber.Connect(); err != nil {
		return err
	}

	go r.listener.Serve(ctx)

	if err := r.driver.Run(ctx); err != nil {
		return err
	}

	r.workerErrCh = make(chan error, 1)
	go func() {
		r.workerErrCh <- r.worker.Serve(ctx, r.pipeline.Handle)
	}()

	select {
	case <-ctx.Done():
		return r.shutdown()
	case err := <-r.workerErrCh:
		_ = r.shutdown()
		return err
	}
}

func (r *Replica) shutdown() error {
	return multierr.Combine(
		r.driver.Stop(),
		r.publisher.Close(),
		r.subscriber.Close(),
	)
}
