package bot

import (
	"errors"
	"sync"
)

const GameBlackjack = "blackjack"

var (
	ErrActiveSession     = errors.New("you already have a game running")
	ErrNoSession         = errors.New("no game running")
	ErrBadBet            = errors.New("bet must be a positive number")
	ErrInsufficientFunds = errors.New("not enough coins")
)

type Phase int

const (
	PhaseNone Phase = iota
	PhaseDealt
	PhaseHit
	PhaseResolved
)

type Outcome int

const (
	Ongoing Outcome = iota
	Natural         // two-card 21
	Bust
	Win
	Lose
	Push
)

// Session is one user's hand in progress.
type Session struct {
	UserID string
	Game   string
	Player []Card
	Dealer []Card
	Deck   []Card
	Bet    int64
	Phase  Phase
}

func (s *Session) draw() Card {
	c := s.Deck[0]
	s.Deck = s.Deck[1:]
	return c
}

// Result describes a hand after a move. Delta is the balance change owed
// for a resolved hand.
type Result struct {
	Outcome     Outcome
	Delta       int64
	Bet         int64
	Player      []Card
	Dealer      []Card
	PlayerValue int
	DealerValue int
}

func (s *Session) result(o Outcome, delta int64) Result {
	return Result{
		Outcome:     o,
		Delta:       delta,
		Bet:         s.Bet,
		Player:      append([]Card(nil), s.Player...),
		Dealer:      append([]Card(nil), s.Dealer...),
		PlayerValue: HandValue(s.Player),
		DealerValue: HandValue(s.Dealer),
	}
}

type sessionKey struct {
	userID string
	game   string
}

// Sessions holds the live game of every user, at most one per game type.
// It lives as long as the chat subsystem that owns it.
type Sessions struct {
	mu    sync.Mutex
	rng   Rand
	games map[sessionKey]*Session
}

func NewSessions(rng Rand) *Sessions {
	return &Sessions{rng: rng, games: map[sessionKey]*Session{}}
}

// StartBlackjack deals a new hand. A natural resolves at once and pays
// bet*3/2.
func (m *Sessions) StartBlackjack(userID string, bet, balance int64) (Result, error) {
	if bet <= 0 {
		return Result{}, ErrBadBet
	}
	if bet > balance {
		return Result{}, ErrInsufficientFunds
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID, GameBlackjack}
	if _, ok := m.games[key]; ok {
		return Result{}, ErrActiveSession
	}
	s := &Session{UserID: userID, Game: GameBlackjack, Bet: bet, Deck: NewDeck(m.rng)}
	s.Player = []Card{s.draw(), s.draw()}
	s.Dealer = []Card{s.draw(), s.draw()}
	s.Phase = PhaseDealt

	if HandValue(s.Player) == 21 {
		s.Phase = PhaseResolved
		return s.result(Natural, bet*3/2), nil
	}
	m.games[key] = s
	return s.result(Ongoing, 0), nil
}

// Hit draws a card. Going over 21 loses the bet; exactly 21 waits for Stand.
func (m *Sessions) Hit(userID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID, GameBlackjack}
	s, ok := m.games[key]
	if !ok {
		return Result{}, ErrNoSession
	}
	s.Player = append(s.Player, s.draw())
	s.Phase = PhaseHit
	if HandValue(s.Player) > 21 {
		s.Phase = PhaseResolved
		delete(m.games, key)
		return s.result(Bust, -s.Bet), nil
	}
	return s.result(Ongoing, 0), nil
}

// Stand plays out the dealer, who draws while under 17, and settles.
func (m *Sessions) Stand(userID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{userID, GameBlackjack}
	s, ok := m.games[key]
	if !ok {
		return Result{}, ErrNoSession
	}
	delete(m.games, key)
	return settle(s), nil
}

func settle(s *Session) Result {
	for HandValue(s.Dealer) < 17 {
		s.Dealer = append(s.Dealer, s.draw())
	}
	s.Phase = PhaseResolved
	player, dealer := HandValue(s.Player), HandValue(s.Dealer)
	switch {
	case dealer > 21 || player > dealer:
		return s.result(Win, s.Bet)
	case dealer > player:
		return s.result(Lose, -s.Bet)
	default:
		return s.result(Push, 0)
	}
}

// Active returns a copy of the user's running hand.
func (m *Sessions) Active(userID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.games[sessionKey{userID, GameBlackjack}]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Reset drops every session (logout).
func (m *Sessions) Reset() {
	m.mu.Lock()
	m.games = map[sessionKey]*Session{}
	m.mu.Unlock()
}

func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}
