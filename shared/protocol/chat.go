package protocol

import (
	"strings"
	"time"
)

// MessageRow is a persisted chat message as stored in the messages table.
type MessageRow struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	IsVIP     bool      `json:"is_vip"`
	ReplyToID string    `json:"reply_to_id,omitempty"`
}

// NewMessage is the insert payload; id and created_at are assigned by the store.
type NewMessage struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	IsVIP     bool   `json:"is_vip"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// IsBotContent reports whether content carries the bot sentinel.
func IsBotContent(content string) bool {
	return strings.HasPrefix(content, BotSentinel)
}

// BotContent prefixes text with the bot sentinel.
func BotContent(text string) string {
	return BotSentinel + text
}

// StripBot removes the sentinel, returning content unchanged if absent.
func StripBot(content string) string {
	return strings.TrimPrefix(content, BotSentinel)
}

// ChannelKind distinguishes static channels from voice-linked ones.
type ChannelKind string

const (
	ChannelPermanent   ChannelKind = "permanent"
	ChannelVoiceLinked ChannelKind = "ephemeral-voice-linked"
)

type ChannelDescriptor struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Kind        ChannelKind `json:"kind"`
	VoiceRoom   string      `json:"voice_room,omitempty"`
	CreatorID   string      `json:"creator_id,omitempty"`
}

// PermanentChannels is the static channel list every client starts with.
var PermanentChannels = []ChannelDescriptor{
	{ID: "global", DisplayName: "Global", Kind: ChannelPermanent},
	{ID: "games", DisplayName: "Games", Kind: ChannelPermanent},
	{ID: "music", DisplayName: "Music", Kind: ChannelPermanent},
	{ID: "offtopic", DisplayName: "Off-topic", Kind: ChannelPermanent},
}
