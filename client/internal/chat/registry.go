package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownChannel = errors.New("chat: unknown channel")
	ErrNotCreator     = errors.New("chat: only the creator can close this channel")
)

const DefaultChannel = "global"

// Registry owns the channel list, the active channel and its subscription.
type Registry struct {
	t     Transport
	store *Store
	log   zerolog.Logger

	// OnChange runs after an accepted event or a switch.
	OnChange func()

	switchMu sync.Mutex // serializes Switch

	mu       sync.Mutex
	channels []protocol.ChannelDescriptor
	active   string
	sub      *Subscription
}

func NewRegistry(t Transport, store *Store) *Registry {
	chans := make([]protocol.ChannelDescriptor, len(protocol.PermanentChannels))
	copy(chans, protocol.PermanentChannels)
	return &Registry{t: t, store: store, channels: chans, log: logging.For("channels")}
}

func (r *Registry) Channels() []protocol.ChannelDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.ChannelDescriptor, len(r.channels))
	copy(out, r.channels)
	return out
}

func (r *Registry) Lookup(id string) (protocol.ChannelDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.channels {
		if c.ID == id {
			return c, true
		}
	}
	return protocol.ChannelDescriptor{}, false
}

func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Open subscribes to inserts on channelID. Stop the returned subscription to
// unsubscribe.
func (r *Registry) Open(ctx context.Context, channelID string) (*Subscription, error) {
	sub := NewSubscription(r.t, protocol.TopicMessages, protocol.Eq("channel_id", channelID), HandlerFunc(r.accept))
	if err := sub.Start(ctx); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channelID, err)
	}
	return sub, nil
}

// Switch moves to channelID: the old subscription stops, the window is
// reloaded with the newest HistoryLimit rows and a new subscription opens.
func (r *Registry) Switch(ctx context.Context, channelID string) error {
	if _, ok := r.Lookup(channelID); !ok {
		return ErrUnknownChannel
	}
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	r.mu.Lock()
	old := r.sub
	r.sub = nil
	r.active = channelID
	r.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	var rows []protocol.MessageRow
	if err := r.t.Select(ctx, protocol.TableMessages, protocol.Eq("channel_id", channelID), protocol.HistoryLimit, "created_at.desc", &rows); err != nil {
		r.log.Error().Err(err).Str("channel", channelID).Msg("history load failed")
		rows = nil
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	r.store.Reset(channelID, rows)

	sub, err := r.Open(ctx, channelID)
	if err != nil {
		r.notify()
		return err
	}
	r.mu.Lock()
	if r.active != channelID {
		r.mu.Unlock()
		sub.Stop()
		return nil
	}
	r.sub = sub
	r.mu.Unlock()

	r.log.Debug().Str("channel", channelID).Int("history", len(rows)).Msg("switched")
	r.notify()
	return nil
}

// accept applies a messages event. The store drops rows for any channel but
// the one it was last reset to.
func (r *Registry) accept(ev protocol.Event) {
	if ev.Type != protocol.EventInsert {
		return
	}
	var row protocol.MessageRow
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		r.log.Warn().Err(err).Msg("bad message event")
		return
	}
	if r.store.ApplyConfirmed(row).Changed() {
		r.notify()
	}
}

func (r *Registry) notify() {
	if r.OnChange != nil {
		r.OnChange()
	}
}

var slugChars = regexp.MustCompile(`[^a-z0-9-]+`)

// CreateVoiceLinked adds a text channel tied to a voice room.
func (r *Registry) CreateVoiceLinked(name, creatorID string) protocol.ChannelDescriptor {
	slug := slugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "room"
	}
	d := protocol.ChannelDescriptor{
		ID:          "voice-" + slug,
		DisplayName: "🔊 " + strings.TrimSpace(name),
		Kind:        protocol.ChannelVoiceLinked,
		VoiceRoom:   slug,
		CreatorID:   creatorID,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.channels {
		if c.ID == d.ID {
			return r.channels[i]
		}
	}
	r.channels = append(r.channels, d)
	return d
}

// Abandon removes the channel linked to voiceRoom when userID created it.
// Leaving the active channel this way falls back to the default channel.
func (r *Registry) Abandon(ctx context.Context, voiceRoom, userID string) error {
	r.mu.Lock()
	idx := -1
	for i, c := range r.channels {
		if c.Kind == protocol.ChannelVoiceLinked && c.VoiceRoom == voiceRoom {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ErrUnknownChannel
	}
	d := r.channels[idx]
	if d.CreatorID != userID {
		r.mu.Unlock()
		return ErrNotCreator
	}
	r.channels = append(r.channels[:idx], r.channels[idx+1:]...)
	wasActive := r.active == d.ID
	r.mu.Unlock()

	r.log.Info().Str("channel", d.ID).Msg("voice channel closed")
	if wasActive {
		return r.Switch(ctx, DefaultChannel)
	}
	r.notify()
	return nil
}

// Close stops the active subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.active = ""
	r.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}
