package protocol

import "time"

// PresenceRecord is the ephemeral status of one connected session.
type PresenceRecord struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url"`
	LastActive time.Time `json:"last_active"`
	InVoice    bool      `json:"in_voice"`
	VoiceRoom  string    `json:"voice_room,omitempty"`
	Status     string    `json:"status,omitempty"`
}
