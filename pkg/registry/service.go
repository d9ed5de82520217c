package registry

import (
	"time"

	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/clock"
	"github.com/mcastellin/chatmesh/pkg/wire"
)

// Service adapts a Registry to the wire protocol consumed by the
// transport.Router the registry binds to. It carries its own Lamport
// clock, mirroring a replica's own discipline: "before emitting any
// message LC is incremented; on receipt LC observes the incoming value"
// applies to the Registry's ROUTER socket exactly as it does to a
// replica's.
type Service struct {
	reg    *Registry
	lc     *clock.Lamport
	logger *zap.Logger
}

// NewService wires a Registry behind the request dispatcher.
func NewService(reg *Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reg: reg, lc: &clock.Lamport{}, logger: logger}
}

// Handle dispatches one decoded request frame to rank, heartbeat, or
// list, and returns the reply frame. It satisfies transport.RequestHandler.
func (s *Service) Handle(req wire.Frame) wire.Frame {
	s.lc.Observe(wire.Uint64Field(req.Data, "clock"))
	stamp := s.lc.Tick()

	var reply wire.Frame
	switch req.Service {
	case "rank":
		reply = s.handleRank(req)
	case "heartbeat":
		reply = s.handleHeartbeat(req)
	case "list":
		reply = s.handleList()
	default:
		reply = errorFrame("unknown service: " + req.Service)
	}

	if reply.Data == nil {
		reply.Data = map[string]any{}
	}
	reply.Data["clock"] = stamp
	reply.Data["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return reply
}

func (s *Service) handleRank(req wire.Frame) wire.Frame {
	id := wire.StringField(req.Data, "id")
	endpoint := wire.StringField(req.Data, "endpoint")
	if id == "" {
		return errorFrame("rank: missing id")
	}
	rank := s.reg.Rank(id, endpoint)
	s.logger.Debug("assigned rank", zap.String("id", id), zap.Uint64("rank", rank), zap.String("endpoint", endpoint))
	return wire.Frame{Service: "rank", Data: map[string]any{"rank": rank}}
}

func (s *Service) handleHeartbeat(req wire.Frame) wire.Frame {
	id := wire.StringField(req.Data, "id")
	if err := s.reg.Heartbeat(id); err != nil {
		return errorFrame(err.Error())
	}
	return wire.Frame{Service: "heartbeat", Data: map[string]any{"status": "ok"}}
}

func (s *Service) handleList() wire.Frame {
	peers := s.reg.List()
	list := make([]any, len(peers))
	for i, p := range peers {
		list[i] = map[string]any{
			"id":       p.ID,
			"rank":     p.Rank,
			"endpoint": p.Endpoint,
		}
	}
	return wire.Frame{Service: "list", Data: map[string]any{"list": list}}
}

func errorFrame(description string) wire.Frame {
	return wire.Frame{Service: "erro", Data: map[string]any{"status": "error", "description": description}}
}
