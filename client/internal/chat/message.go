// Package chat is the realtime chat engine: the active channel and its
// subscription, the in-memory message window with optimistic sends, and the
// presence set.
package chat

import (
	"strings"
	"time"

	"spacedan/shared/protocol"

	"github.com/google/uuid"
)

type Status int

const (
	Pending Status = iota
	Confirmed
	// Local entries are private answers shown only in this client.
	Local
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Local:
		return "local"
	}
	return "unknown"
}

const tempPrefix = "tmp-"

func NewTempID() string       { return tempPrefix + uuid.NewString() }
func IsTempID(id string) bool { return strings.HasPrefix(id, tempPrefix) }

type Message struct {
	ID        string
	ChannelID string
	// AuthorID is the account that inserted the row, also for bot messages.
	AuthorID  string
	Content   string
	CreatedAt time.Time
	IsVIP     bool
	ReplyToID string
	Status    Status
	// Bot is set when the row carried the bot sentinel; Content is stripped.
	Bot bool
}

// Author is the identity to display.
func (m Message) Author() string {
	if m.Bot {
		return protocol.BotUserID
	}
	return m.AuthorID
}

// wire returns the content as stored, sentinel included.
func (m Message) wire() string {
	if m.Bot {
		return protocol.BotContent(m.Content)
	}
	return m.Content
}

func FromRow(row protocol.MessageRow) Message {
	m := Message{
		ID:        row.ID,
		ChannelID: row.ChannelID,
		AuthorID:  row.UserID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
		IsVIP:     row.IsVIP,
		ReplyToID: row.ReplyToID,
		Status:    Confirmed,
	}
	if protocol.IsBotContent(row.Content) {
		m.Bot = true
		m.Content = protocol.StripBot(row.Content)
	}
	return m
}

// Row is the insert payload for a pending message.
func (m Message) Row() protocol.NewMessage {
	return protocol.NewMessage{
		ChannelID: m.ChannelID,
		UserID:    m.AuthorID,
		Content:   m.wire(),
		IsVIP:     m.IsVIP,
		ReplyToID: m.ReplyToID,
	}
}
