package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"spacedan/shared/protocol"
)

func TestSwitchLoadsHistoryOldestFirst(t *testing.T) {
	ft := newFakeTransport()
	for i := 0; i < 60; i++ {
		ft.rows = append(ft.rows, protocol.MessageRow{ID: fmt.Sprintf("g%d", i), ChannelID: "games", UserID: "u", Content: fmt.Sprint(i)})
	}
	ft.rows = append(ft.rows, protocol.MessageRow{ID: "x", ChannelID: "global", UserID: "u", Content: "elsewhere"})

	s := NewStore("me", 0)
	r := NewRegistry(ft, s)
	if err := r.Switch(context.Background(), "games"); err != nil {
		t.Fatal(err)
	}
	msgs := s.Messages()
	if len(msgs) != protocol.HistoryLimit || msgs[0].ID != "g10" || msgs[len(msgs)-1].ID != "g59" {
		t.Fatalf("history len %d first %s", len(msgs), msgs[0].ID)
	}
	if r.Active() != "games" || ft.live(protocol.TopicMessages) != 1 {
		t.Errorf("active %q subs %d", r.Active(), ft.live(protocol.TopicMessages))
	}
}

func TestSwitchIsolatesChannels(t *testing.T) {
	ft := newFakeTransport()
	s := NewStore("me", 0)
	r := NewRegistry(ft, s)
	ctx := context.Background()
	r.Switch(ctx, "global")
	r.Switch(ctx, "music")
	if n := ft.live(protocol.TopicMessages); n != 1 {
		t.Fatalf("%d live message subscriptions", n)
	}

	ft.emitRow(protocol.MessageRow{ID: "g1", ChannelID: "global", UserID: "u", Content: "old channel"})
	ft.emitRow(protocol.MessageRow{ID: "m1", ChannelID: "music", UserID: "u", Content: "tunes"})
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("window %+v", msgs)
	}
	if err := r.Switch(ctx, "nope"); err != ErrUnknownChannel {
		t.Errorf("unknown channel err = %v", err)
	}
}

func TestLateEventFromPreviousChannelIgnored(t *testing.T) {
	ft := newFakeTransport()
	s := NewStore("me", 0)
	r := NewRegistry(ft, s)
	ctx := context.Background()
	r.Switch(ctx, "global")
	r.Switch(ctx, "music")

	// delivered by the global subscription after the switch went through
	raw, _ := json.Marshal(protocol.MessageRow{ID: "g9", ChannelID: "global", UserID: "u", Content: "late"})
	r.accept(protocol.Event{Topic: protocol.TopicMessages, Type: protocol.EventInsert, Row: raw})
	if s.Len() != 0 {
		t.Fatalf("late global row landed in music: %+v", s.Messages())
	}
}

func TestVoiceChannelLifecycle(t *testing.T) {
	ft := newFakeTransport()
	s := NewStore("me", 0)
	r := NewRegistry(ft, s)
	ctx := context.Background()

	d := r.CreateVoiceLinked("  Late Night Lounge ", "me")
	if d.ID != "voice-late-night-lounge" || d.Kind != protocol.ChannelVoiceLinked {
		t.Fatalf("descriptor %+v", d)
	}
	if again := r.CreateVoiceLinked("late night lounge", "other"); again.CreatorID != "me" {
		t.Errorf("recreate changed creator: %+v", again)
	}
	if err := r.Switch(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	if err := r.Abandon(ctx, d.VoiceRoom, "other"); err != ErrNotCreator {
		t.Fatalf("non-creator abandon err = %v", err)
	}
	if err := r.Abandon(ctx, d.VoiceRoom, "me"); err != nil {
		t.Fatal(err)
	}
	if r.Active() != DefaultChannel {
		t.Errorf("active after abandon = %q", r.Active())
	}
	if _, ok := r.Lookup(d.ID); ok {
		t.Errorf("channel still listed")
	}
	if err := r.Abandon(ctx, d.VoiceRoom, "me"); err != ErrUnknownChannel {
		t.Errorf("second abandon err = %v", err)
	}
}

func TestCloseStopsSubscription(t *testing.T) {
	ft := newFakeTransport()
	r := NewRegistry(ft, NewStore("me", 0))
	r.Switch(context.Background(), "global")
	r.Close()
	if ft.live(protocol.TopicMessages) != 0 || r.Active() != "" {
		t.Errorf("close left state behind")
	}
}
