package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	brokerDispatchTimeout = 5 * time.Second
	brokerReplyTimeout    = 60 * time.Second
)

// CommandBroker relays client REQ frames to a fair-queued pool of replica
// workers, matching spec.md §2's "Command Broker". Clients dial ClientAddr
// once per request (REQ semantics); replicas dial WorkerAddr once and stay
// connected, pulling one request at a time off the broker (DEALER
// semantics) — the broker only ever hands a worker its next request after
// the previous one has been answered, which is what keeps dispatch fair
// without an explicit scheduler.
type CommandBroker struct {
	ClientAddr string
	WorkerAddr string
	Logger     *zap.Logger

	clientListener net.Listener
	workerListener net.Listener

	idleWorkers chan *brokerWorker

	mu      sync.Mutex
	pending map[string]chan []byte
}

type brokerWorker struct {
	conn    net.Conn
	writeCh chan workerJob
}

type workerJob struct {
	corrID  string
	payload []byte
}

// Serve binds both faces and runs until ctx is cancelled.
func (b *CommandBroker) Serve(ctx context.Context) error {
	b.idleWorkers = make(chan *brokerWorker, 256)
	b.pending = map[string]chan []byte{}

	cl, err := net.Listen("tcp", b.ClientAddr)
	if err != nil {
		return err
	}
	b.clientListener = cl

	wl, err := net.Listen("tcp", b.WorkerAddr)
	if err != nil {
		cl.Close()
		return err
	}
	b.workerListener = wl

	go func() {
		<-ctx.Done()
		cl.Close()
		wl.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.acceptClients(ctx)
	}()
	go func() {
		defer wg.Done()
		b.acceptWorkers(ctx)
	}()
	wg.Wait()
	return nil
}

func (b *CommandBroker) acceptClients(ctx context.Context) {
	for {
		conn, err := b.clientListener.Accept()
		if err != nil {
			return
		}
		go b.serveClient(ctx, conn)
	}
}

func (b *CommandBroker) serveClient(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	payload, err := readFrame(conn)
	if err != nil {
		return
	}

	corrID := uuid.NewString()
	replyCh := make(chan []byte, 1)
	b.mu.Lock()
	b.pending[corrID] = replyCh
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, corrID)
		b.mu.Unlock()
	}()

	select {
	case w := <-b.idleWorkers:
		w.writeCh <- workerJob{corrID: corrID, payload: payload}
	case <-time.After(brokerDispatchTimeout):
		if b.Logger != nil {
			b.Logger.Warn("no replica worker available to dispatch request")
		}
		return
	case <-ctx.Done():
		return
	}

	select {
	case reply := <-replyCh:
		_ = writeFrame(conn, reply)
	case <-time.After(brokerReplyTimeout):
		if b.Logger != nil {
			b.Logger.Warn("timed out waiting for replica reply", zap.String("corrId", corrID))
		}
	case <-ctx.Done():
	}
}

func (b *CommandBroker) acceptWorkers(ctx context.Context) {
	for {
		conn, err := b.workerListener.Accept()
		if err != nil {
			return
		}
		w := &brokerWorker{conn: conn, writeCh: make(chan workerJob, 1)}
		go b.runWorker(ctx, w)
	}
}

func (b *CommandBroker) runWorker(ctx context.Context, w *brokerWorker) {
	defer w.conn.Close()

	go func() {
		for job := range w.writeCh {
			if err := writeFrame(w.conn, []byte(job.corrID)); err != nil {
				return
			}
			if err := writeFrame(w.conn, job.payload); err != nil {
				return
			}
		}
	}()

	select {
	case b.idleWorkers <- w:
	case <-ctx.Done():
		return
	}

	for {
		corrID, err := readFrame(w.conn)
		if err != nil {
			close(w.writeCh)
			return
		}
		payload, err := readFrame(w.conn)
		if err != nil {
			close(w.writeCh)
			return
		}

		b.mu.Lock()
		replyCh, ok := b.pending[string(corrID)]
		b.mu.Unlock()
		if ok {
			replyCh <- payload
		}

		select {
		case b.idleWorkers <- w:
		case <-ctx.Done():
			close(w.writeCh)
			return
		}
	}
}

// Close stops accepting new client and worker connections.
func (b *CommandBroker) Close() error {
	if b.clientListener != nil {
		b.clientListener.Close()
	}
	if b.workerListener != nil {
		b.workerListener.Close()
	}
	return nil
}

const (
	workerReconnectBase = time.Second
	workerReconnectCap  = 30 * time.Second
)

// WorkerClient is the replica-side counterpart to CommandBroker: it dials
// WorkerAddr and serves inbound requests with handler, one at a time,
// redialing with backoff whenever the connection drops or the broker is
// unreachable. The Command Broker and each replica are independent
// processes with no start-order guarantee (spec.md §2), so a dial race or
// a later broker restart is routine, not exceptional; Serve never returns
// a transport error to the caller for that reason, matching spec.md §7's
// "transport errors on inbound sockets log and continue the loop".
type WorkerClient struct {
	Addr   string
	Logger *zap.Logger
}

// Serve processes requests with handler until ctx is cancelled. It only
// returns once ctx is done; any connection failure before that is logged
// and followed by a redial after a backoff that grows on consecutive
// failures and resets on every successful dial.
func (w *WorkerClient) Serve(ctx context.Context, handler RequestHandler) error {
	backoff := workerReconnectBase
	for {
		if ctx.Err() != nil {
			return nil
		}

		connected, err := w.serveOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && w.Logger != nil {
			w.Logger.Warn("worker connection to broker dropped, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		}
		if connected {
			backoff = workerReconnectBase
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > workerReconnectCap {
			backoff = workerReconnectCap
		}
	}
}

// serveOnce dials Addr once and processes requests until the connection
// drops or ctx is cancelled. connected reports whether the dial itself
// succeeded, so the caller can tell a reachable-but-dropped connection
// (reset the backoff) apart from a still-unreachable broker (keep
// growing it).
func (w *WorkerClient) serveOnce(ctx context.Context, handler RequestHandler) (connected bool, err error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", w.Addr)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		corrID, err := readFrame(conn)
		if err != nil {
			return true, err
		}
		payload, err := readFrame(conn)
		if err != nil {
			return true, err
		}

		req, err := decodeOrErrorFrame(payload)
		reply := handler(req)
		if err != nil && w.Logger != nil {
			w.Logger.Warn("worker decode error, replying with erro frame")
		}

		out, err := encodeFrame(reply)
		if err != nil {
			continue
		}
		if err := writeFrame(conn, corrID); err != nil {
			return true, err
		}
		if err := writeFrame(conn, out); err != nil {
			return true, err
		}
	}
}
