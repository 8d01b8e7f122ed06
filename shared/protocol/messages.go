package protocol

import "encoding/json"

// Envelope
type MsgEnvelope struct {
	Type string          `json:"type"`
	ID   int64           `json:"id,omitempty"` // request id, echoed back in Reply
	Data json.RawMessage `json:"data"`
}

// Envelope types
const (
	TypeSubscribe   = "Subscribe"
	TypeUnsubscribe = "Unsubscribe"
	TypeInsert      = "Insert"
	TypeSelect      = "Select"
	TypeRPC         = "RPC"
	TypeTrack       = "Track"
	TypeUntrack     = "Untrack"

	TypeReply = "Reply"
	TypeEvent = "Event"
)

// ================= C -> S =================

type Subscribe struct {
	Topic  string `json:"topic"`
	Filter string `json:"filter,omitempty"` // e.g. "channel_id=eq.global"
}

type Unsubscribe struct {
	Topic  string `json:"topic"`
	Filter string `json:"filter,omitempty"`
}

type Insert struct {
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

type Select struct {
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Order  string `json:"order,omitempty"` // "created_at.desc"
}

type RPC struct {
	Proc string          `json:"proc"`
	Args json.RawMessage `json:"args"`
}

// Track publishes the caller's presence record on the presence topic.
type Track struct {
	Record PresenceRecord `json:"record"`
}

type Untrack struct{}

// ================= S -> C =================

type Reply struct {
	OK    bool            `json:"ok"`
	Error *ErrorMsg       `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorMsg) Error() string { return e.Code + ": " + e.Message }

// Event is pushed to every subscriber of Topic whose filter matches.
type Event struct {
	Topic   string           `json:"topic"`
	Type    string           `json:"type"`
	Key     string           `json:"key,omitempty"`
	Row     json.RawMessage  `json:"row,omitempty"`
	Records []PresenceRecord `json:"records,omitempty"`
}

// Event kinds
const (
	EventInsert = "insert"
	EventSync   = "sync"
	EventJoin   = "join"
	EventLeave  = "leave"
)

// Error codes
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidMsg   = "invalid_message"
	ErrCodeInternal     = "internal_error"
)

// NewEnvelope marshals v into an envelope of the given type.
func NewEnvelope(typ string, id int64, v interface{}) (MsgEnvelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return MsgEnvelope{}, err
	}
	return MsgEnvelope{Type: typ, ID: id, Data: b}, nil
}
