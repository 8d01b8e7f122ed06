package srv

import (
	"sort"
	"time"

	"spacedan/shared/protocol"
)

// presence holds one record per user. A user with several sessions stays
// present until the last one untracks. Guarded by Hub.mu.
type presence struct {
	entries map[string]*presenceEntry
}

type presenceEntry struct {
	rec      protocol.PresenceRecord
	sessions map[*client]struct{}
}

func newPresence() *presence {
	return &presence{entries: map[string]*presenceEntry{}}
}

func (p *presence) snapshot() []protocol.PresenceRecord {
	out := make([]protocol.PresenceRecord, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (h *Hub) track(c *client, id int64, rec protocol.PresenceRecord) {
	// the key is always the authenticated user; nobody publishes for others
	rec.ID = c.user.UserID
	rec.Username = c.user.Username
	if rec.LastActive.IsZero() {
		rec.LastActive = time.Now().UTC()
	}

	h.mu.Lock()
	e, ok := h.presence.entries[rec.ID]
	if !ok {
		e = &presenceEntry{sessions: map[*client]struct{}{}}
		h.presence.entries[rec.ID] = e
	}
	e.rec = rec
	e.sessions[c] = struct{}{}
	h.mu.Unlock()

	reply(c, id, nil)
	h.publish(protocol.TopicPresence, nil, protocol.Event{
		Topic:   protocol.TopicPresence,
		Type:    protocol.EventJoin,
		Key:     rec.ID,
		Records: []protocol.PresenceRecord{rec},
	})
}

func (h *Hub) untrack(c *client) {
	h.mu.Lock()
	e, ok := h.presence.entries[c.user.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(e.sessions, c)
	gone := len(e.sessions) == 0
	if gone {
		delete(h.presence.entries, c.user.UserID)
	}
	rec := e.rec
	h.mu.Unlock()

	if gone {
		h.publish(protocol.TopicPresence, nil, protocol.Event{
			Topic:   protocol.TopicPresence,
			Type:    protocol.EventLeave,
			Key:     rec.ID,
			Records: []protocol.PresenceRecord{rec},
		})
	}
}

func (h *Hub) broadcastPresenceSync() {
	h.mu.Lock()
	snap := h.presence.snapshot()
	h.mu.Unlock()
	h.publish(protocol.TopicPresence, nil, protocol.Event{Topic: protocol.TopicPresence, Type: protocol.EventSync, Records: snap})
}
