package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrNoSession = errors.New("presence: no tracked session")
	ErrThrottled = errors.New("presence: too many updates")
)

// PresenceUpdate carries the fields to change; nil fields are left alone.
type PresenceUpdate struct {
	InVoice   *bool
	VoiceRoom *string
	Status    *string
	AvatarURL *string
}

// Tracker mirrors the presence topic and publishes this user's record.
type Tracker struct {
	t       PresenceTransport
	limiter *rate.Limiter
	now     func() time.Time
	log     zerolog.Logger

	OnChange func()

	mu     sync.Mutex
	self   *protocol.PresenceRecord
	online map[string]protocol.PresenceRecord
}

// NewTracker allows a burst of three updates and one more every two seconds
// when limiter is nil.
func NewTracker(t PresenceTransport, limiter *rate.Limiter) *Tracker {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(2*time.Second), 3)
	}
	return &Tracker{
		t:       t,
		limiter: limiter,
		now:     time.Now,
		online:  map[string]protocol.PresenceRecord{},
		log:     logging.For("presence"),
	}
}

// Subscription returns a presence-topic subscription feeding this tracker.
func (p *Tracker) Subscription(s Subscriber) *Subscription {
	return NewSubscription(s, protocol.TopicPresence, protocol.Filter{}, p)
}

// Track publishes self as this session's record.
func (p *Tracker) Track(ctx context.Context, self protocol.PresenceRecord) error {
	self.LastActive = p.now().UTC()
	p.mu.Lock()
	rec := self
	p.self = &rec
	p.mu.Unlock()
	return p.t.Track(ctx, self)
}

// Update merges u into the tracked record and re-publishes it.
func (p *Tracker) Update(ctx context.Context, u PresenceUpdate) error {
	p.mu.Lock()
	if p.self == nil {
		p.mu.Unlock()
		return ErrNoSession
	}
	if !p.limiter.Allow() {
		p.mu.Unlock()
		return ErrThrottled
	}
	rec := *p.self
	if u.InVoice != nil {
		rec.InVoice = *u.InVoice
		if !rec.InVoice {
			rec.VoiceRoom = ""
		}
	}
	if u.VoiceRoom != nil {
		rec.VoiceRoom = *u.VoiceRoom
	}
	if u.Status != nil {
		rec.Status = *u.Status
	}
	if u.AvatarURL != nil {
		rec.AvatarURL = *u.AvatarURL
	}
	rec.LastActive = p.now().UTC()
	p.self = &rec
	p.mu.Unlock()

	return p.t.Track(ctx, rec)
}

// Untrack withdraws this session's record.
func (p *Tracker) Untrack(ctx context.Context) error {
	p.mu.Lock()
	had := p.self != nil
	p.self = nil
	p.online = map[string]protocol.PresenceRecord{}
	p.mu.Unlock()
	if !had {
		return nil
	}
	return p.t.Untrack(ctx)
}

func (p *Tracker) Self() (protocol.PresenceRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.self == nil {
		return protocol.PresenceRecord{}, false
	}
	return *p.self, true
}

// HandleEvent applies sync, join and leave events.
func (p *Tracker) HandleEvent(ev protocol.Event) {
	p.mu.Lock()
	switch ev.Type {
	case protocol.EventSync:
		next := make(map[string]protocol.PresenceRecord, len(ev.Records))
		for _, r := range ev.Records {
			next[r.ID] = r
		}
		p.online = next
	case protocol.EventJoin:
		for _, r := range ev.Records {
			p.online[r.ID] = r
		}
	case protocol.EventLeave:
		key := ev.Key
		if key == "" && len(ev.Records) > 0 {
			key = ev.Records[0].ID
		}
		delete(p.online, key)
	default:
		p.mu.Unlock()
		p.log.Debug().Str("type", ev.Type).Msg("ignored presence event")
		return
	}
	p.mu.Unlock()
	if p.OnChange != nil {
		p.OnChange()
	}
}

// Online returns a copy of the presence set keyed by user id.
func (p *Tracker) Online() map[string]protocol.PresenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]protocol.PresenceRecord, len(p.online))
	for k, v := range p.online {
		out[k] = v
	}
	return out
}

// Sorted lists online users by name.
func (p *Tracker) Sorted() []protocol.PresenceRecord {
	m := p.Online()
	out := make([]protocol.PresenceRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out
}
