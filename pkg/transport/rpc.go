package transport

import (
	"context"
	"net"
	"time"

	"github.com/mcastellin/chatmesh/pkg/wire"
	"go.uber.org/zap"
)

// RPCServer implements Router over plain TCP: each inbound connection
// carries exactly one request frame and gets exactly one reply frame
// before it is closed. This is the shape the Registry and a replica's P2P
// listener both need: many independent callers, no shared session state.
//
// The accept/serve split mirrors gossip.Gossiper.serveLoop and
// plugin.Server.Serve: accepting a new connection never blocks on serving
// the previous one.
type RPCServer struct {
	Addr   string
	Logger *zap.Logger

	listener net.Listener
}

// Serve binds Addr and dispatches every inbound frame to handler until ctx
// is cancelled.
func (s *RPCServer) Serve(ctx context.Context, handler RequestHandler) error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = l

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if s.Logger != nil {
					s.Logger.Warn("rpc accept error", zap.Error(err))
				}
				return err
			}
		}
		go s.serveConn(conn, handler)
	}
}

func (s *RPCServer) serveConn(conn net.Conn, handler RequestHandler) {
	defer conn.Close()

	payload, err := readFrame(conn)
	if err != nil {
		return
	}
	req, err := wire.Decode(payload)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("rpc decode error", zap.Error(err))
		}
		return
	}

	reply := handler(req)

	out, err := wire.Encode(reply)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("rpc encode error", zap.Error(err))
		}
		return
	}
	_ = writeFrame(conn, out)
}

// Close stops accepting new connections.
func (s *RPCServer) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// RPCClient implements MessageSink over plain TCP with a per-call dial,
// matching the REQ socket's one-request-one-reply discipline. Every
// ephemeral caller (election RPCs, clock-sync RPCs, registry calls) uses
// one of these with an explicit timeout, per spec.md §5.
type RPCClient struct {
	Addr    string
	Timeout time.Duration
}

// Request dials Addr, sends req, and waits for the single reply frame.
// The dial, write, and read are all bound by Timeout (falling back to ctx's
// deadline when Timeout is zero).
func (c *RPCClient) Request(ctx context.Context, req wire.Frame) (wire.Frame, error) {
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return wire.Frame{}, err
	}
	defer conn.Close()

	if c.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	} else if d, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(d)
	}

	payload, err := wire.Encode(req)
	if err != nil {
		return wire.Frame{}, err
	}
	if err := writeFrame(conn, payload); err != nil {
		return wire.Frame{}, err
	}

	replyPayload, err := readFrame(conn)
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.Decode(replyPayload)
}
