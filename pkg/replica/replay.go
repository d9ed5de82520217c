package replica

import (
	"go.uber.org/zap"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

// ApplyReplicated implements the idempotent replay handler (spec.md
// §4.6): login/channel inserts are applied only if absent, never
// overwriting; publish/message are appended to the message log with no
// further fan-out, so a peer's SUB-driven apply never re-triggers a
// replication broadcast or a second client-visible chat delivery.
func (p *Pipeline) ApplyReplicated(original wire.Frame) {
	switch original.Service {
	case "login":
		user := wire.StringField(original.Data, "user")
		if user == "" {
			return
		}
		if _, err := p.store.InsertUserIfAbsent(user, UserRecord{Timestamp: nowISO()}); err != nil {
			p.logger.Warn("replay apply failed", zap.String("service", "login"), zap.Error(err))
		}
	case "channel":
		channel := wire.StringField(original.Data, "channel")
		if channel == "" {
			return
		}
		if _, err := p.store.InsertChannelIfAbsent(channel, ChannelRecord{Timestamp: nowISO()}); err != nil {
			p.logger.Warn("replay apply failed", zap.String("service", "channel"), zap.Error(err))
		}
	case "publish":
		channel := wire.StringField(original.Data, "channel")
		user := wire.StringField(original.Data, "user")
		message := wire.StringField(original.Data, "message")
		clockVal := wire.Uint64Field(original.Data, "clock")
		if err := p.store.AppendMessage(MessageRecord{
			Channel: channel, SrcUser: user, Message: message, Timestamp: nowISO(), Clock: clockVal,
		}); err != nil {
			p.logger.Warn("replay apply failed", zap.String("service", "publish"), zap.Error(err))
		}
	case "message":
		dst := wire.StringField(original.Data, "dst")
		src := wire.StringField(original.Data, "src")
		message := wire.StringField(original.Data, "message")
		clockVal := wire.Uint64Field(original.Data, "clock")
		if err := p.store.AppendMessage(MessageRecord{
			DstUser: dst, SrcUser: src, Message: message, Timestamp: nowISO(), Clock: clockVal,
		}); err != nil {
			p.logger.Warn("replay apply failed", zap.String("service", "message"), zap.Error(err))
		}
	}
}
