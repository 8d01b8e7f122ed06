package currency

import (
	"context"
	"database/sql"
	"errors"

	"spacedan/server/store"
	"spacedan/shared/duel"
	"spacedan/shared/protocol"
)

// Challenge replaces the pending duel offer. The challenger must be able to
// cover the stake when the offer is made.
func (l *Ledger) Challenge(ctx context.Context, caller string, a protocol.DuelChallengeArgs) (*protocol.DuelChallengeResult, error) {
	if a.Amount <= 0 {
		return nil, &CurrencyError{Code: CodeInvalidAmount, Message: "Amount must be > 0"}
	}
	if a.TargetID == "" || a.TargetID == caller {
		return nil, &CurrencyError{Code: CodeBadArgs, Message: "pick someone else to duel"}
	}
	me, err := l.db.Profile(ctx, caller)
	if err != nil {
		return nil, notFound(err)
	}
	if me.Balance < a.Amount {
		return nil, &CurrencyError{Code: CodeInsufficientFunds, Message: "Not enough coins"}
	}
	them, err := l.db.Profile(ctx, a.TargetID)
	if err != nil {
		return nil, notFound(err)
	}

	l.mu.Lock()
	o := l.duels.Challenge(duel.Offer{
		ChallengerID:   me.ID,
		ChallengerName: me.Username,
		TargetID:       them.ID,
		TargetName:     them.Username,
		Amount:         a.Amount,
	})
	l.mu.Unlock()

	l.log.Info().Str("challenger", me.Username).Str("target", them.Username).Int64("amount", a.Amount).Msg("duel offered")
	return &protocol.DuelChallengeResult{ExpiresAt: o.Expiry}, nil
}

// AcceptDuel resolves the pending offer for caller and moves the stake from
// loser to winner without a fee.
func (l *Ledger) AcceptDuel(ctx context.Context, caller string, a protocol.DuelAcceptArgs) (*protocol.DuelAcceptResult, error) {
	var res protocol.DuelAcceptResult
	err := l.idempotent(ctx, protocol.ProcDuelAccept, a.Nonce, &res, func(tx *sql.Tx) error {
		out, err := l.duels.Accept(caller)
		switch {
		case errors.Is(err, duel.ErrNoDuel):
			return &CurrencyError{Code: CodeNoDuel, Message: err.Error()}
		case errors.Is(err, duel.ErrNotTarget):
			return &CurrencyError{Code: CodeNotTarget, Message: err.Error()}
		case err != nil:
			return err
		}

		amt := out.Offer.Amount
		if _, err := l.adjust(ctx, tx, out.LoserID, -amt); err != nil {
			return err
		}
		if _, err := l.adjust(ctx, tx, out.WinnerID, amt); err != nil {
			return err
		}
		now := l.db.Now()
		id, err := store.InsertTransferTx(ctx, tx, now, out.LoserID, out.WinnerID, amt, 0, "duel")
		if err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, now, out.LoserID, -amt, protocol.AwardGameLoss, id, "duel"); err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, now, out.WinnerID, amt, protocol.AwardGameReward, id, "duel"); err != nil {
			return err
		}
		me, err := store.ProfileTx(ctx, tx, caller)
		if err != nil {
			return err
		}
		res = protocol.DuelAcceptResult{
			ChallengerID:   out.Offer.ChallengerID,
			ChallengerName: out.Offer.ChallengerName,
			WinnerID:       out.WinnerID,
			Amount:         amt,
			Balance:        me.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("winner", res.WinnerID).Int64("amount", res.Amount).Msg("duel resolved")
	return &res, nil
}
