// Package realtime is the client side of the hub protocol: request/reply
// calls against the row store and topic subscriptions with local fan-out.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("realtime: connection closed")

// EventFunc receives events for a subscription. It runs on the dispatch
// goroutine, in arrival order.
type EventFunc func(protocol.Event)

type subKey struct {
	topic  string
	filter protocol.Filter
}

type sub struct {
	key subKey
	fn  EventFunc
}

type Conn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	pending map[int64]chan protocol.Reply
	subs    map[int64]*sub
	nextSub int64

	events chan protocol.Event
	done   chan struct{}
	log    zerolog.Logger
}

// Dial connects to the hub with a bearer token.
func Dial(ctx context.Context, wsURL, token string) (*Conn, error) {
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
		if u, err := neturl.Parse(wsURL); err == nil {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
			wsURL = u.String()
		}
	}
	log := logging.For("realtime")

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second, EnableCompression: true}
	ws, resp, err := dialer.DialContext(ctx, wsURL, hdr)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			log.Error().Str("status", resp.Status).Str("body", string(body)).Msg("ws dial failed")
		} else {
			log.Error().Err(err).Msg("ws dial failed")
		}
		return nil, err
	}
	return newConn(ws, log), nil
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	c := &Conn{
		conn:    ws,
		pending: map[int64]chan protocol.Reply{},
		subs:    map[int64]*sub{},
		events:  make(chan protocol.Event, 256),
		done:    make(chan struct{}),
		log:     log,
	}
	go c.reader()
	go c.dispatch()
	return c
}

// Done is closed when the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) reader() {
	defer c.shutdown()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read")
			}
			return
		}
		var env protocol.MsgEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeReply:
			var r protocol.Reply
			if err := json.Unmarshal(env.Data, &r); err != nil {
				continue
			}
			c.mu.Lock()
			ch := c.pending[env.ID]
			delete(c.pending, env.ID)
			c.mu.Unlock()
			if ch != nil {
				ch <- r
			}
		case protocol.TypeEvent:
			var ev protocol.Event
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				continue
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
	}
}

func (c *Conn) dispatch() {
	for {
		select {
		case ev := <-c.events:
			for _, fn := range c.matching(ev) {
				fn(ev)
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) matching(ev protocol.Event) []EventFunc {
	fields := eventFields(ev)
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []EventFunc
	for _, s := range c.subs {
		if s.key.topic == ev.Topic && s.key.filter.Matches(fields) {
			out = append(out, s.fn)
		}
	}
	return out
}

func eventFields(ev protocol.Event) map[string]string {
	if len(ev.Row) == 0 {
		return nil
	}
	var row map[string]any
	if json.Unmarshal(ev.Row, &row) != nil {
		return nil
	}
	fields := make(map[string]string, len(row))
	for k, v := range row {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	_ = c.conn.Close()
}

// Close closes the websocket; pending calls fail with ErrClosed.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown()
	return nil
}

// call sends one request and waits for its reply. A server-side error comes
// back as *protocol.ErrorMsg.
func (c *Conn) call(ctx context.Context, typ string, v any) (json.RawMessage, error) {
	id := protocol.NewID()
	env, err := protocol.NewEnvelope(typ, id, v)
	if err != nil {
		return nil, err
	}
	ch := make(chan protocol.Reply, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case r, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if !r.OK {
			if r.Error == nil {
				return nil, &protocol.ErrorMsg{Code: protocol.ErrCodeInternal, Message: "request failed"}
			}
			return nil, r.Error
		}
		return r.Data, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

// post writes one request without waiting for its reply. The hub handles a
// connection's frames in order, so anything sent later is handled after it.
func (c *Conn) post(typ string, v any) error {
	env, err := protocol.NewEnvelope(typ, protocol.NewID(), v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func decodeInto(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
