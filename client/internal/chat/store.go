package chat

import (
	"strings"
	"sync"
	"time"

	"spacedan/shared/protocol"
)

// Outcome tells what ApplyConfirmed did with a server row.
type Outcome int

const (
	Duplicate Outcome = iota
	// Foreign rows belong to another channel than the window's.
	Foreign
	Replaced
	Appended
)

// Changed reports whether the window was modified.
func (o Outcome) Changed() bool { return o == Replaced || o == Appended }

// Store is the message window of the active channel. Pending messages hold
// their slot until the server echo replaces them in place.
type Store struct {
	mu        sync.Mutex
	self      string
	channel   string
	limit     int
	msgs      []Message
	processed map[string]struct{}
	now       func() time.Time
}

func NewStore(self string, limit int) *Store {
	if limit <= 0 {
		limit = protocol.WindowLimit
	}
	return &Store{self: self, limit: limit, processed: map[string]struct{}{}, now: time.Now}
}

// AppendPending adds m at the tail under a temporary id and returns it.
func (s *Store) AppendPending(m Message) Message {
	m.ID = NewTempID()
	m.Status = Pending
	if m.AuthorID == "" {
		m.AuthorID = s.self
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.trim()
	s.mu.Unlock()
	return m
}

// AppendLocal adds a private bot answer that is never reconciled.
func (s *Store) AppendLocal(channelID, text string) Message {
	m := Message{
		ID:        NewTempID(),
		ChannelID: channelID,
		AuthorID:  s.self,
		Content:   text,
		CreatedAt: s.now(),
		Status:    Local,
		Bot:       true,
	}
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.trim()
	s.mu.Unlock()
	return m
}

// ApplyConfirmed merges a server row into the window. Rows for a channel
// other than the one last passed to Reset are ignored.
func (s *Store) ApplyConfirmed(row protocol.MessageRow) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != "" && row.ChannelID != s.channel {
		return Foreign
	}
	if _, ok := s.processed[row.ID]; ok {
		return Duplicate
	}
	s.processed[row.ID] = struct{}{}

	confirmed := FromRow(row)
	out := Appended
	if row.UserID == s.self {
		want := strings.TrimSpace(row.Content)
		for i := len(s.msgs) - 1; i >= 0; i-- {
			m := s.msgs[i]
			if m.Status == Pending && m.AuthorID == s.self && strings.TrimSpace(m.wire()) == want {
				s.msgs[i] = confirmed
				out = Replaced
				break
			}
		}
	}
	if out == Appended {
		s.msgs = append(s.msgs, confirmed)
	}
	s.trim()
	return out
}

// Drop removes a pending entry whose insert failed.
func (s *Store) Drop(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID == tempID && m.Status == Pending {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return true
		}
	}
	return false
}

// Reset points the window at channelID, fills it with rows (oldest first)
// and restarts the processed set from their ids.
func (s *Store) Reset(channelID string, rows []protocol.MessageRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = channelID
	s.processed = make(map[string]struct{}, len(rows))
	s.msgs = make([]Message, 0, len(rows))
	for _, r := range rows {
		if _, dup := s.processed[r.ID]; dup {
			continue
		}
		s.processed[r.ID] = struct{}{}
		s.msgs = append(s.msgs, FromRow(r))
	}
	s.trim()
}

// Clear empties the window but keeps the processed set, so late echoes of
// purged rows stay hidden.
func (s *Store) Clear() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

// Channel is the channel the window holds.
func (s *Store) Channel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Messages returns a copy of the window, oldest first.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// trim keeps the newest s.limit entries. Caller holds s.mu.
func (s *Store) trim() {
	if n := len(s.msgs) - s.limit; n > 0 {
		s.msgs = append([]Message(nil), s.msgs[n:]...)
	}
}
