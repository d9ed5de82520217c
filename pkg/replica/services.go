package replica

import (
	"time"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

// writeOutcome is the result of executing a write service handler: the
// reply data to merge into the client response, and, on success, the
// replication frame that must be broadcast to peers and/or the
// user-visible chat frame that must be published for fan-out.
type writeOutcome struct {
	replyData map[string]any
	// replicate is true when the write actually mutated state and must
	// be announced on the replication topic (state errors, e.g.
	// duplicate user, do not replicate).
	replicate bool
	// chatTopic/chatPayload are set only for publish/message, which
	// additionally fan out a user-visible frame beyond the replication
	// announcement.
	chatTopic   string
	chatPayload map[string]any
}

// handleLogin implements spec.md §4.2's login service: insert the user
// keyed by name only if absent.
func (p *Pipeline) handleLogin(req wire.Frame) writeOutcome {
	user := wire.StringField(req.Data, "user")
	if user == "" {
		return writeOutcome{replyData: errorData("login: missing user")}
	}

	inserted, err := p.store.InsertUserIfAbsent(user, UserRecord{Timestamp: nowISO()})
	if err != nil {
		return writeOutcome{replyData: errorData(err.Error())}
	}
	if !inserted {
		return writeOutcome{replyData: errorData("user already exists")}
	}
	return writeOutcome{replyData: map[string]any{"status": "ok"}, replicate: true}
}

// handleChannel implements the channel service: insert the channel keyed
// by name only if absent.
func (p *Pipeline) handleChannel(req wire.Frame) writeOutcome {
	channel := wire.StringField(req.Data, "channel")
	if channel == "" {
		return writeOutcome{replyData: errorData("channel: missing channel")}
	}

	inserted, err := p.store.InsertChannelIfAbsent(channel, ChannelRecord{Timestamp: nowISO()})
	if err != nil {
		return writeOutcome{replyData: errorData(err.Error())}
	}
	if !inserted {
		return writeOutcome{replyData: errorData("channel already exists")}
	}
	return writeOutcome{replyData: map[string]any{"status": "ok"}, replicate: true}
}

// handlePublish implements the publish service: append to the message
// log and fan out on the channel's topic, rejecting unknown channels.
func (p *Pipeline) handlePublish(req wire.Frame, stampedClock uint64) writeOutcome {
	channel := wire.StringField(req.Data, "channel")
	user := wire.StringField(req.Data, "user")
	message := wire.StringField(req.Data, "message")

	if !p.store.HasChannel(channel) {
		return writeOutcome{replyData: errorData("channel does not exist")}
	}

	timestamp := nowISO()
	if err := p.store.AppendMessage(MessageRecord{
		Channel: channel, SrcUser: user, Message: message, Timestamp: timestamp, Clock: stampedClock,
	}); err != nil {
		return writeOutcome{replyData: errorData(err.Error())}
	}

	return writeOutcome{
		replyData:   map[string]any{"status": "ok"},
		replicate:   true,
		chatTopic:   channel,
		chatPayload: map[string]any{"user": user, "message": message, "timestamp": timestamp, "clock": stampedClock},
	}
}

// handleMessage implements the message (private message) service:
// append to the message log and fan out on topic user:<dst>, rejecting
// unknown destination users.
func (p *Pipeline) handleMessage(req wire.Frame, stampedClock uint64) writeOutcome {
	dst := wire.StringField(req.Data, "dst")
	src := wire.StringField(req.Data, "src")
	message := wire.StringField(req.Data, "message")

	if !p.store.HasUser(dst) {
		return writeOutcome{replyData: errorData("destination user does not exist")}
	}

	timestamp := nowISO()
	if err := p.store.AppendMessage(MessageRecord{
		DstUser: dst, SrcUser: src, Message: message, Timestamp: timestamp, Clock: stampedClock,
	}); err != nil {
		return writeOutcome{replyData: errorData(err.Error())}
	}

	return writeOutcome{
		replyData:   map[string]any{"status": "ok"},
		replicate:   true,
		chatTopic:   "user:" + dst,
		chatPayload: map[string]any{"src": src, "message": message, "timestamp": timestamp, "clock": stampedClock},
	}
}

// handleUsers implements the read-only users service.
func (p *Pipeline) handleUsers() map[string]any {
	names := p.store.Users()
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	return map[string]any{"users": list}
}

// handleChannels implements the read-only channels service.
func (p *Pipeline) handleChannels() map[string]any {
	names := p.store.Channels()
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	return map[string]any{"channels": list}
}

func errorData(description string) map[string]any {
	return map[string]any{"status": "erro", "description": description}
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339Nano) }
