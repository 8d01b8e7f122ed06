package currency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"spacedan/server/store"
	"spacedan/shared/duel"
	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
)

// CurrencyError represents a currency-related error
type CurrencyError struct {
	Code    string
	Message string
}

func (e *CurrencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeUnknownProc       = "UNKNOWN_PROC"
	CodeBadArgs           = "BAD_ARGS"
	CodeNoDuel            = "NO_DUEL"
	CodeNotTarget         = "NOT_TARGET"
)

// Ledger runs the economy procedures. Every mutating procedure executes in a
// single sqlite transaction together with its nonce bookkeeping, so a
// replayed nonce returns the first result without touching balances.
type Ledger struct {
	db    *store.DB
	mu    sync.Mutex // serializes writers; sqlite would otherwise return SQLITE_BUSY
	rng   *rand.Rand
	duels *duel.Book
	log   zerolog.Logger
}

func NewLedger(db *store.DB, rng *rand.Rand) *Ledger {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	l := &Ledger{db: db, rng: rng, log: logging.For("currency")}
	// flips only happen under l.mu, which also guards rng
	l.duels = duel.NewBook(db.Now, func() bool { return l.rng.Intn(2) == 0 })
	return l
}

// Call dispatches an RPC by name on behalf of caller. Callers may only act
// on their own account.
func (l *Ledger) Call(ctx context.Context, caller, proc string, raw json.RawMessage) (any, error) {
	switch proc {
	case protocol.ProcGetBalance:
		var a protocol.BalanceArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if a.UserID == "" {
			a.UserID = caller
		}
		bal, err := l.Balance(ctx, a.UserID)
		if err != nil {
			return nil, err
		}
		return protocol.BalanceResult{Balance: bal}, nil

	case protocol.ProcAwardCoins:
		var a protocol.AwardArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if err := own(caller, a.UserID); err != nil {
			return nil, err
		}
		return l.Award(ctx, a)

	case protocol.ProcTransfer:
		var a protocol.TransferArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if err := own(caller, a.FromUserID); err != nil {
			return nil, err
		}
		return l.Transfer(ctx, a)

	case protocol.ProcDailyBonus:
		var a protocol.DailyArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if err := own(caller, a.UserID); err != nil {
			return nil, err
		}
		return l.ClaimDaily(ctx, a)

	case protocol.ProcWorkShift:
		var a protocol.WorkArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if err := own(caller, a.UserID); err != nil {
			return nil, err
		}
		return l.Work(ctx, a)

	case protocol.ProcDuelChallenge:
		var a protocol.DuelChallengeArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return l.Challenge(ctx, caller, a)

	case protocol.ProcDuelAccept:
		var a protocol.DuelAcceptArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		return l.AcceptDuel(ctx, caller, a)

	case protocol.ProcPurgeChannel:
		var a protocol.PurgeArgs
		if err := decode(raw, &a); err != nil {
			return nil, err
		}
		if err := own(caller, a.UserID); err != nil {
			return nil, err
		}
		if a.ChannelID == "" {
			return nil, &CurrencyError{Code: CodeBadArgs, Message: "channel_id required"}
		}
		n, err := l.db.DeleteChannelMessages(ctx, a.ChannelID)
		if err != nil {
			return nil, err
		}
		l.log.Info().Str("channel", a.ChannelID).Str("by", caller).Int64("deleted", n).Msg("channel purged")
		return protocol.PurgeResult{Deleted: n}, nil
	}
	return nil, &CurrencyError{Code: CodeUnknownProc, Message: "unknown procedure " + proc}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &CurrencyError{Code: CodeBadArgs, Message: err.Error()}
	}
	return nil
}

func own(caller, userID string) error {
	if caller == "" || caller != userID {
		return &CurrencyError{Code: CodeForbidden, Message: "cannot act on another account"}
	}
	return nil
}

// Balance returns the current balance of a user.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	p, err := l.db.Profile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, &CurrencyError{Code: CodeNotFound, Message: "no such account"}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load account: %w", err)
	}
	return p.Balance, nil
}

// idempotent runs apply inside a transaction keyed by nonce. A nonce seen
// before short-circuits with the stored result.
func (l *Ledger) idempotent(ctx context.Context, proc, nonce string, out any, apply func(tx *sql.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.db.Tx(ctx, func(tx *sql.Tx) error {
		if nonce != "" {
			prev, seen, err := store.NonceResultTx(ctx, tx, nonce)
			if err != nil {
				return err
			}
			if seen {
				l.log.Warn().Str("proc", proc).Str("nonce", nonce).Msg("duplicate nonce, replaying result")
				return json.Unmarshal([]byte(prev), out)
			}
		}
		if err := apply(tx); err != nil {
			return err
		}
		if nonce == "" {
			return nil
		}
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return store.SaveNonceTx(ctx, tx, l.db.Now(), nonce, proc, string(b))
	})
}

// adjust moves a balance by delta, refusing to go below zero.
func (l *Ledger) adjust(ctx context.Context, tx *sql.Tx, userID string, delta int64) (int64, error) {
	p, err := store.ProfileTx(ctx, tx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, &CurrencyError{Code: CodeNotFound, Message: "no such account"}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load account: %w", err)
	}
	if p.Balance+delta < 0 {
		return 0, &CurrencyError{Code: CodeInsufficientFunds, Message: "Not enough coins"}
	}
	if err := store.SetBalanceTx(ctx, tx, userID, p.Balance+delta); err != nil {
		return 0, fmt.Errorf("failed to save account: %w", err)
	}
	return p.Balance + delta, nil
}
