package srv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"spacedan/server/currency"
	"spacedan/shared/protocol"
)

const (
	maxContent   = 2000
	maxSelectRow = 200
)

func (h *Hub) insert(ctx context.Context, c *client, id int64, msg protocol.Insert) {
	if msg.Table != protocol.TableMessages {
		replyErr(c, id, protocol.ErrCodeForbidden, "insert not allowed on "+msg.Table)
		return
	}
	var nm protocol.NewMessage
	if err := json.Unmarshal(msg.Row, &nm); err != nil {
		replyErr(c, id, protocol.ErrCodeInvalidMsg, err.Error())
		return
	}
	nm.UserID = c.user.UserID
	if strings.TrimSpace(nm.Content) == "" || nm.ChannelID == "" {
		replyErr(c, id, protocol.ErrCodeInvalidMsg, "channel_id and content are required")
		return
	}
	if utf8.RuneCountInString(nm.Content) > maxContent {
		replyErr(c, id, protocol.ErrCodeInvalidMsg, "message too long")
		return
	}

	row, err := h.db.InsertMessage(ctx, nm)
	if err != nil {
		h.log.Error().Err(err).Str("user", c.user.Username).Msg("insert failed")
		replyErr(c, id, protocol.ErrCodeInternal, "insert failed")
		return
	}
	reply(c, id, row)

	b, _ := json.Marshal(row)
	h.publish(protocol.TopicMessages,
		map[string]string{"channel_id": row.ChannelID, "user_id": row.UserID},
		protocol.Event{Topic: protocol.TopicMessages, Type: protocol.EventInsert, Key: row.ID, Row: b})
}

func (h *Hub) selectRows(ctx context.Context, c *client, id int64, msg protocol.Select) {
	f, err := protocol.ParseFilter(msg.Filter)
	if err != nil {
		replyErr(c, id, protocol.ErrCodeInvalidMsg, err.Error())
		return
	}
	limit := msg.Limit
	if limit <= 0 || limit > maxSelectRow {
		limit = maxSelectRow
	}

	switch msg.Table {
	case protocol.TableMessages:
		if f.Column != "channel_id" {
			replyErr(c, id, protocol.ErrCodeInvalidMsg, "messages must be filtered by channel_id")
			return
		}
		rows, err := h.db.SelectMessages(ctx, f.Value, limit, msg.Order == "created_at.desc")
		if err != nil {
			h.log.Error().Err(err).Msg("select messages failed")
			replyErr(c, id, protocol.ErrCodeInternal, "select failed")
			return
		}
		if rows == nil {
			rows = []protocol.MessageRow{}
		}
		reply(c, id, rows)

	case protocol.TableProfiles:
		rows, err := h.db.SelectProfiles(ctx, f, limit)
		if err != nil {
			replyErr(c, id, protocol.ErrCodeInvalidMsg, err.Error())
			return
		}
		if rows == nil {
			rows = []protocol.Profile{}
		}
		reply(c, id, rows)

	default:
		replyErr(c, id, protocol.ErrCodeNotFound, "unknown table "+msg.Table)
	}
}

func (h *Hub) rpc(ctx context.Context, c *client, id int64, msg protocol.RPC) {
	out, err := h.procs.Call(ctx, c.user.UserID, msg.Proc, msg.Args)
	if err != nil {
		var ce *currency.CurrencyError
		if errors.As(err, &ce) {
			replyErr(c, id, ce.Code, ce.Message)
			return
		}
		h.log.Error().Err(err).Str("proc", msg.Proc).Str("user", c.user.Username).Msg("rpc failed")
		replyErr(c, id, protocol.ErrCodeInternal, "rpc failed")
		return
	}
	reply(c, id, out)
}
