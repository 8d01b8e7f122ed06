package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"spacedan/shared/protocol"
)

// Subscribe registers fn for events on topic matching f. The returned cancel
// stops local delivery at once and unsubscribes on the server when no other
// local subscription shares the same topic and filter. The unsubscribe frame
// is written before cancel returns, without waiting for the reply.
func (c *Conn) Subscribe(ctx context.Context, topic string, f protocol.Filter, fn func(protocol.Event)) (func(), error) {
	key := subKey{topic: topic, filter: f}
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = &sub{key: key, fn: fn}
	c.mu.Unlock()

	if _, err := c.call(ctx, protocol.TypeSubscribe, protocol.Subscribe{Topic: topic, Filter: f.String()}); err != nil {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		return nil, err
	}

	var once bool
	return func() {
		c.mu.Lock()
		if once {
			c.mu.Unlock()
			return
		}
		once = true
		delete(c.subs, id)
		shared := false
		for _, s := range c.subs {
			if s.key == key {
				shared = true
				break
			}
		}
		c.mu.Unlock()
		if shared {
			return
		}
		// written before returning so a resubscribe to the same key lands after it
		if err := c.post(protocol.TypeUnsubscribe, protocol.Unsubscribe{Topic: topic, Filter: f.String()}); err != nil && !errors.Is(err, ErrClosed) {
			c.log.Warn().Err(err).Str("topic", topic).Msg("unsubscribe")
		}
	}, nil
}

// Insert writes row into table and decodes the confirmed row into out.
func (c *Conn) Insert(ctx context.Context, table string, row, out any) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	data, err := c.call(ctx, protocol.TypeInsert, protocol.Insert{Table: table, Row: b})
	if err != nil {
		return err
	}
	return decodeInto(data, out)
}

// Select reads rows; order is "created_at.desc" or "created_at.asc".
func (c *Conn) Select(ctx context.Context, table string, f protocol.Filter, limit int, order string, out any) error {
	data, err := c.call(ctx, protocol.TypeSelect, protocol.Select{Table: table, Filter: f.String(), Limit: limit, Order: order})
	if err != nil {
		return err
	}
	return decodeInto(data, out)
}

func (c *Conn) RPC(ctx context.Context, proc string, args, out any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	data, err := c.call(ctx, protocol.TypeRPC, protocol.RPC{Proc: proc, Args: b})
	if err != nil {
		return err
	}
	return decodeInto(data, out)
}

// Track publishes (or replaces) this session's presence record.
func (c *Conn) Track(ctx context.Context, rec protocol.PresenceRecord) error {
	_, err := c.call(ctx, protocol.TypeTrack, protocol.Track{Record: rec})
	return err
}

func (c *Conn) Untrack(ctx context.Context) error {
	_, err := c.call(ctx, protocol.TypeUntrack, protocol.Untrack{})
	return err
}
