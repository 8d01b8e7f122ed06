package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"spacedan/shared/protocol"
)

type fakeSub struct {
	topic  string
	filter protocol.Filter
	fn     func(protocol.Event)
}

// fakeTransport is an in-memory row store and event bus.
type fakeTransport struct {
	mu        sync.Mutex
	next      int
	subs      map[int]fakeSub
	rows      []protocol.MessageRow
	profiles  []protocol.Profile
	inserted  []protocol.NewMessage
	insertErr error
	// echo publishes inserted rows to subscribers like the server does
	echo     bool
	rpcs     []string
	rpcOut   map[string]any
	tracked  []protocol.PresenceRecord
	untracks int
	clock    time.Time
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subs:   map[int]fakeSub{},
		rpcOut: map[string]any{},
		clock:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic string, flt protocol.Filter, fn func(protocol.Event)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.subs[id] = fakeSub{topic, flt, fn}
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}, nil
}

func (f *fakeTransport) live(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}

// publish delivers ev to matching subscribers on the caller's goroutine.
func (f *fakeTransport) publish(topic string, fields map[string]string, ev protocol.Event) {
	ev.Topic = topic
	f.mu.Lock()
	var fns []func(protocol.Event)
	for _, s := range f.subs {
		if s.topic == topic && s.filter.Matches(fields) {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeTransport) emitRow(row protocol.MessageRow) {
	raw, _ := json.Marshal(row)
	f.publish(protocol.TopicMessages, map[string]string{"channel_id": row.ChannelID}, protocol.Event{Type: protocol.EventInsert, Row: raw})
}

func (f *fakeTransport) emitPresence(typ, key string, recs ...protocol.PresenceRecord) {
	f.publish(protocol.TopicPresence, nil, protocol.Event{Type: typ, Key: key, Records: recs})
}

func (f *fakeTransport) Insert(ctx context.Context, table string, row, out any) error {
	nm := row.(protocol.NewMessage)
	f.mu.Lock()
	if f.insertErr != nil {
		err := f.insertErr
		f.mu.Unlock()
		return err
	}
	f.inserted = append(f.inserted, nm)
	f.clock = f.clock.Add(time.Second)
	r := protocol.MessageRow{
		ID:        fmt.Sprintf("m%d", len(f.inserted)),
		ChannelID: nm.ChannelID,
		UserID:    nm.UserID,
		Content:   nm.Content,
		CreatedAt: f.clock,
		IsVIP:     nm.IsVIP,
	}
	f.rows = append(f.rows, r)
	echo := f.echo
	f.mu.Unlock()
	if echo {
		f.emitRow(r)
	}
	if p, ok := out.(*protocol.MessageRow); ok {
		*p = r
	}
	return nil
}

// Select returns rows newest first for messages.
func (f *fakeTransport) Select(ctx context.Context, table string, flt protocol.Filter, limit int, order string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch table {
	case protocol.TableMessages:
		var res []protocol.MessageRow
		for i := len(f.rows) - 1; i >= 0 && len(res) < limit; i-- {
			if f.rows[i].ChannelID == flt.Value {
				res = append(res, f.rows[i])
			}
		}
		*out.(*[]protocol.MessageRow) = res
	case protocol.TableProfiles:
		var res []protocol.Profile
		for _, p := range f.profiles {
			if p.Username == flt.Value {
				res = append(res, p)
			}
		}
		*out.(*[]protocol.Profile) = res
	default:
		return errors.New("unknown table")
	}
	return nil
}

func (f *fakeTransport) RPC(ctx context.Context, proc string, args, out any) error {
	f.mu.Lock()
	f.rpcs = append(f.rpcs, proc)
	res, ok := f.rpcOut[proc]
	f.mu.Unlock()
	if err, isErr := res.(error); isErr {
		return err
	}
	if ok {
		raw, _ := json.Marshal(res)
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (f *fakeTransport) Track(ctx context.Context, rec protocol.PresenceRecord) error {
	f.mu.Lock()
	f.tracked = append(f.tracked, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Untrack(ctx context.Context) error {
	f.mu.Lock()
	f.untracks++
	f.mu.Unlock()
	return nil
}
