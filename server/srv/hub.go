// server/srv/hub.go
package srv

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"spacedan/server/auth"
	"spacedan/server/store"
	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxFrame = 64 << 10

// Procedures runs named RPCs on behalf of an authenticated user.
type Procedures interface {
	Call(ctx context.Context, caller, proc string, args json.RawMessage) (any, error)
}

type subscription struct {
	topic  string
	filter protocol.Filter
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   int64
	user auth.Identity
	subs map[subscription]struct{}
}

type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	presence *presence

	db    *store.DB
	procs Procedures
	log   zerolog.Logger

	// SyncEvery is how often the full presence set is re-broadcast.
	SyncEvery time.Duration
	// NonceTTL bounds how long spent RPC nonces are remembered.
	NonceTTL time.Duration
}

func NewHub(db *store.DB, procs Procedures) *Hub {
	return &Hub{
		clients:   map[*client]struct{}{},
		presence:  newPresence(),
		db:        db,
		procs:     procs,
		log:       logging.For("hub"),
		SyncEvery: 30 * time.Second,
		NonceTTL:  48 * time.Hour,
	}
}

// Run re-broadcasts presence and prunes old nonces until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.SyncEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		h.broadcastPresenceSync()

		if n, err := h.db.PruneNonces(ctx, h.db.Now().Add(-h.NonceTTL)); err != nil {
			h.log.Warn().Err(err).Msg("nonce prune failed")
		} else if n > 0 {
			h.log.Debug().Int64("pruned", n).Msg("nonces pruned")
		}
	}
}

// HandleWS serves one authenticated connection until it closes.
func (h *Hub) HandleWS(conn *websocket.Conn, who auth.Identity) {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		id:   protocol.NewID(),
		user: who,
		subs: map[subscription]struct{}{},
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info().Str("user", who.Username).Int64("conn", c.id).Msg("connected")

	go c.writer()
	c.reader(h)
}

func (c *client) reader(h *Hub) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrame)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("user", c.user.Username).Msg("read error")
			}
			return
		}

		var env protocol.MsgEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Warn().Str("user", c.user.Username).Msg("failed to unmarshal envelope")
			continue
		}
		h.log.Debug().Str("user", c.user.Username).Str("type", env.Type).Int64("id", env.ID).Msg("ws msg")
		h.dispatch(c, env)
	}
}

func (h *Hub) dispatch(c *client, env protocol.MsgEnvelope) {
	ctx := context.Background()
	switch env.Type {
	case protocol.TypeSubscribe:
		var msg protocol.Subscribe
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			replyErr(c, env.ID, protocol.ErrCodeInvalidMsg, err.Error())
			return
		}
		h.subscribe(c, env.ID, msg)

	case protocol.TypeUnsubscribe:
		var msg protocol.Unsubscribe
		_ = json.Unmarshal(env.Data, &msg)
		f, _ := protocol.ParseFilter(msg.Filter)
		h.mu.Lock()
		delete(c.subs, subscription{topic: msg.Topic, filter: f})
		h.mu.Unlock()
		reply(c, env.ID, nil)

	case protocol.TypeInsert:
		var msg protocol.Insert
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			replyErr(c, env.ID, protocol.ErrCodeInvalidMsg, err.Error())
			return
		}
		h.insert(ctx, c, env.ID, msg)

	case protocol.TypeSelect:
		var msg protocol.Select
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			replyErr(c, env.ID, protocol.ErrCodeInvalidMsg, err.Error())
			return
		}
		h.selectRows(ctx, c, env.ID, msg)

	case protocol.TypeRPC:
		var msg protocol.RPC
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			replyErr(c, env.ID, protocol.ErrCodeInvalidMsg, err.Error())
			return
		}
		h.rpc(ctx, c, env.ID, msg)

	case protocol.TypeTrack:
		var msg protocol.Track
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			replyErr(c, env.ID, protocol.ErrCodeInvalidMsg, err.Error())
			return
		}
		h.track(c, env.ID, msg.Record)

	case protocol.TypeUntrack:
		h.untrack(c)
		reply(c, env.ID, nil)

	default:
		replyErr(c, env.ID, protocol.ErrCodeInvalidMsg, "Unknown message type: "+env.Type)
	}
}

func (h *Hub) subscribe(c *client, id int64, msg protocol.Subscribe) {
	f, err := protocol.ParseFilter(msg.Filter)
	if err != nil {
		replyErr(c, id, protocol.ErrCodeInvalidMsg, err.Error())
		return
	}
	switch msg.Topic {
	case protocol.TopicMessages, protocol.TopicPresence:
	default:
		replyErr(c, id, protocol.ErrCodeNotFound, "unknown topic "+msg.Topic)
		return
	}

	h.mu.Lock()
	c.subs[subscription{topic: msg.Topic, filter: f}] = struct{}{}
	var snapshot []protocol.PresenceRecord
	if msg.Topic == protocol.TopicPresence {
		snapshot = h.presence.snapshot()
	}
	h.mu.Unlock()

	reply(c, id, nil)
	if msg.Topic == protocol.TopicPresence {
		sendJSON(c, protocol.TypeEvent, protocol.Event{Topic: protocol.TopicPresence, Type: protocol.EventSync, Records: snapshot})
	}
}

// drop removes a closed client and its presence.
func (h *Hub) drop(c *client) {
	h.untrack(c)
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.log.Info().Str("user", c.user.Username).Int64("conn", c.id).Msg("disconnected")
}

// publish sends ev to every client subscribed to topic whose filter matches
// fields. Caller must not hold h.mu.
func (h *Hub) publish(topic string, fields map[string]string, ev protocol.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		for s := range c.subs {
			if s.topic == topic && s.filter.Matches(fields) {
				sendJSON(c, protocol.TypeEvent, ev)
				break
			}
		}
	}
}

func (c *client) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func sendJSON(c *client, typ string, v interface{}) {
	sendEnvelope(c, typ, 0, v)
}

func sendEnvelope(c *client, typ string, id int64, v interface{}) {
	env, err := protocol.NewEnvelope(typ, id, v)
	if err != nil {
		return
	}
	out, _ := json.Marshal(env)
	select {
	case c.send <- out:
	default:
	}
}

func reply(c *client, id int64, data any) {
	r := protocol.Reply{OK: true}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			replyErr(c, id, protocol.ErrCodeInternal, err.Error())
			return
		}
		r.Data = b
	}
	sendEnvelope(c, protocol.TypeReply, id, r)
}

func replyErr(c *client, id int64, code, message string) {
	sendEnvelope(c, protocol.TypeReply, id, protocol.Reply{Error: &protocol.ErrorMsg{Code: code, Message: message}})
}
