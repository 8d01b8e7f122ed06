// Package duel holds the single pending coin-flip duel offer. A new
// challenge replaces whatever offer was pending; resolving an offer always
// clears it.
package duel

import (
	"errors"
	"sync"
	"time"
)

const TTL = 60 * time.Second

var (
	ErrNoDuel    = errors.New("no duel pending")
	ErrNotTarget = errors.New("duel is for someone else")
)

type Offer struct {
	ChallengerID   string    `json:"challenger_id"`
	ChallengerName string    `json:"challenger_name"`
	TargetID       string    `json:"target_id"`
	TargetName     string    `json:"target_name"`
	Amount         int64     `json:"amount"`
	Expiry         time.Time `json:"expiry"`
}

type Result struct {
	Offer    Offer
	WinnerID string
	LoserID  string
}

type Book struct {
	mu    sync.Mutex
	offer *Offer
	now   func() time.Time
	flip  func() bool
}

// NewBook returns an empty book. flip reports whether the challenger wins.
func NewBook(now func() time.Time, flip func() bool) *Book {
	if now == nil {
		now = time.Now
	}
	return &Book{now: now, flip: flip}
}

// Challenge records o as the pending offer with a fresh expiry.
func (b *Book) Challenge(o Offer) Offer {
	b.mu.Lock()
	defer b.mu.Unlock()
	o.Expiry = b.now().Add(TTL)
	b.offer = &o
	return o
}

// Accept resolves the pending offer for callerID.
func (b *Book) Accept(callerID string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offer == nil {
		return Result{}, ErrNoDuel
	}
	if !b.now().Before(b.offer.Expiry) {
		b.offer = nil
		return Result{}, ErrNoDuel
	}
	if b.offer.TargetID != callerID {
		return Result{}, ErrNotTarget
	}

	o := *b.offer
	b.offer = nil
	res := Result{Offer: o, WinnerID: o.TargetID, LoserID: o.ChallengerID}
	if b.flip() {
		res.WinnerID, res.LoserID = o.ChallengerID, o.TargetID
	}
	return res, nil
}

// Pending returns the live offer, if any.
func (b *Book) Pending() (Offer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offer == nil || !b.now().Before(b.offer.Expiry) {
		return Offer{}, false
	}
	return *b.offer, true
}
