package chat

import (
	"context"
	"errors"
	"sync"

	"spacedan/shared/protocol"
)

// Handler consumes realtime events.
type Handler interface {
	HandleEvent(ev protocol.Event)
}

type HandlerFunc func(ev protocol.Event)

func (f HandlerFunc) HandleEvent(ev protocol.Event) { f(ev) }

// Subscriber is the pub/sub half of the transport.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, f protocol.Filter, fn func(protocol.Event)) (func(), error)
}

var ErrStarted = errors.New("chat: subscription already started")

// Subscription is one topic/filter registration. Events that arrive after
// Stop are dropped even if the transport still delivers them.
type Subscription struct {
	t      Subscriber
	topic  string
	filter protocol.Filter
	h      Handler

	mu     sync.Mutex
	cancel func()
	live   bool
}

func NewSubscription(t Subscriber, topic string, f protocol.Filter, h Handler) *Subscription {
	return &Subscription{t: t, topic: topic, filter: f, h: h}
}

func (s *Subscription) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.live {
		s.mu.Unlock()
		return ErrStarted
	}
	s.live = true
	s.mu.Unlock()

	cancel, err := s.t.Subscribe(ctx, s.topic, s.filter, s.deliver)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.live = false
		return err
	}
	if !s.live {
		// stopped while subscribing
		cancel()
		return nil
	}
	s.cancel = cancel
	return nil
}

func (s *Subscription) deliver(ev protocol.Event) {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	if live {
		s.h.HandleEvent(ev)
	}
}

func (s *Subscription) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.live = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Subscription) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Subscription) Filter() protocol.Filter { return s.filter }
