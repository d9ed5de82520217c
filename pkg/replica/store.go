package replica

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"
)

// UserRecord is one entry of users.json.
type UserRecord struct {
	Timestamp string `json:"timestamp"`
}

// ChannelRecord is one entry of channels.json.
type ChannelRecord struct {
	Timestamp string `json:"timestamp"`
}

// MessageRecord is one appended line of messages.jsonl, covering both
// channel publishes and private messages.
type MessageRecord struct {
	ID        string `json:"id"`
	Channel   string `json:"channel,omitempty"`
	DstUser   string `json:"dst,omitempty"`
	SrcUser   string `json:"user,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Clock     uint64 `json:"clock"`
}

// Store is the replica's persisted layout per spec.md §6: two JSON
// object files for users and channels, rewritten atomically per
// mutation, plus one append-only JSON-lines file for messages. Its own
// mutex guards the in-memory maps and is held across each insert + save
// sequence, so locally handled and replicated writes to the maps are
// linearized. The mutex is released before the pipeline publishes the
// replication frame; it does not cover the replicate emit.
type Store struct {
	mu sync.Mutex

	dir      string
	users    map[string]UserRecord
	channels map[string]ChannelRecord
}

// OpenStore loads users.json and channels.json from dir (creating an
// empty in-memory store if the files are absent or unparsable, mirroring
// the original implementation's load_data: a missing or corrupt file is
// treated as an empty object, never a startup failure).
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		dir:      dir,
		users:    map[string]UserRecord{},
		channels: map[string]ChannelRecord{},
	}
	loadJSONOrEmpty(filepath.Join(dir, "users.json"), &s.users)
	loadJSONOrEmpty(filepath.Join(dir, "channels.json"), &s.channels)
	return s, nil
}

func loadJSONOrEmpty[T any](path string, out *map[string]T) {
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return
	}
	var parsed map[string]T
	if err := json.Unmarshal(b, &parsed); err != nil {
		return
	}
	*out = parsed
}

func (s *Store) usersPath() string    { return filepath.Join(s.dir, "users.json") }
func (s *Store) channelsPath() string { return filepath.Join(s.dir, "channels.json") }
func (s *Store) messagesPath() string { return filepath.Join(s.dir, "messages.jsonl") }

// InsertUserIfAbsent inserts the user keyed by name only if it does not
// already exist, persisting the updated map. Reports whether the insert
// happened (false means the name was already taken).
func (s *Store) InsertUserIfAbsent(name string, rec UserRecord) (inserted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[name]; exists {
		return false, nil
	}
	s.users[name] = rec
	if err := writeJSONAtomic(s.usersPath(), s.users); err != nil {
		return false, err
	}
	return true, nil
}

// InsertChannelIfAbsent inserts the channel keyed by name only if it
// does not already exist, persisting the updated map.
func (s *Store) InsertChannelIfAbsent(name string, rec ChannelRecord) (inserted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[name]; exists {
		return false, nil
	}
	s.channels[name] = rec
	if err := writeJSONAtomic(s.channelsPath(), s.channels); err != nil {
		return false, err
	}
	return true, nil
}

// HasUser reports whether name is a known user.
func (s *Store) HasUser(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[name]
	return ok
}

// HasChannel reports whether name is a known channel.
func (s *Store) HasChannel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[name]
	return ok
}

// Users returns the list of known usernames.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.users))
	for name := range s.users {
		out = append(out, name)
	}
	return out
}

// Channels returns the list of known channel names.
func (s *Store) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for name := range s.channels {
		out = append(out, name)
	}
	return out
}

// AppendMessage appends one message record to messages.jsonl, assigning
// it a fresh xid-generated id if it does not already carry one. Every
// current caller, including replay-apply, leaves ID unset, so a
// replicated publish/message gets its own id and a duplicate line is
// permitted rather than deduplicated (see DESIGN.md's open-question
// resolution on message-log dedup).
func (s *Store) AppendMessage(rec MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = xid.New().String()
	}

	f, err := os.OpenFile(s.messagesPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	return w.Flush()
}

// writeJSONAtomic serializes v to a temp file in the same directory as
// path and renames it into place, so a crash mid-write never leaves a
// half-written users.json/channels.json behind.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
