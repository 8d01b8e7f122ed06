package chat

import (
	"context"

	"spacedan/shared/protocol"
)

// RowStore is the remote row store consumed by the engine.
type RowStore interface {
	Insert(ctx context.Context, table string, row, out any) error
	Select(ctx context.Context, table string, f protocol.Filter, limit int, order string, out any) error
	RPC(ctx context.Context, proc string, args, out any) error
}

// PresenceTransport publishes this session's presence record.
type PresenceTransport interface {
	Track(ctx context.Context, rec protocol.PresenceRecord) error
	Untrack(ctx context.Context) error
}

// Transport is everything the chat subsystem needs from the connection.
type Transport interface {
	Subscriber
	RowStore
	PresenceTransport
}
