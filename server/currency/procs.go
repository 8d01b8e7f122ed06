package currency

import (
	"context"
	"database/sql"
	"errors"

	"spacedan/server/store"
	"spacedan/shared/protocol"
)

// Award credits or debits one account. Negative amounts are how game losses
// and VIP highlights are charged.
func (l *Ledger) Award(ctx context.Context, a protocol.AwardArgs) (*protocol.AwardResult, error) {
	if a.Amount == 0 {
		return nil, &CurrencyError{Code: CodeInvalidAmount, Message: "Amount must be non-zero"}
	}
	var res protocol.AwardResult
	err := l.idempotent(ctx, protocol.ProcAwardCoins, a.Nonce, &res, func(tx *sql.Tx) error {
		bal, err := l.adjust(ctx, tx, a.UserID, a.Amount)
		if err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, l.db.Now(), a.UserID, a.Amount, a.Type, a.Reference, a.Description); err != nil {
			return err
		}
		res = protocol.AwardResult{Success: true, Balance: bal, Awarded: a.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("user", a.UserID).Int64("amount", a.Amount).Str("type", a.Type).Int64("balance", res.Balance).Msg("award")
	return &res, nil
}

// Transfer moves coins between two accounts, charging TransferFeePct unless
// NoFee is set. The fee is burned.
func (l *Ledger) Transfer(ctx context.Context, a protocol.TransferArgs) (*protocol.TransferResult, error) {
	if a.FromUserID == a.ToUserID {
		return nil, &CurrencyError{Code: CodeInvalidAmount, Message: "Cannot transfer to yourself"}
	}
	if a.Amount <= 0 {
		return nil, &CurrencyError{Code: CodeInvalidAmount, Message: "Amount must be > 0"}
	}
	if !a.NoFee && (a.Amount < protocol.TransferMin || a.Amount > protocol.TransferMax) {
		return nil, &CurrencyError{Code: CodeInvalidAmount, Message: "Amount out of range"}
	}
	var fee int64
	if !a.NoFee {
		fee = a.Amount * protocol.TransferFeePct / 100
	}

	var res protocol.TransferResult
	err := l.idempotent(ctx, protocol.ProcTransfer, a.Nonce, &res, func(tx *sql.Tx) error {
		fromBal, err := l.adjust(ctx, tx, a.FromUserID, -a.Amount)
		if err != nil {
			return err
		}
		if _, err := l.adjust(ctx, tx, a.ToUserID, a.Amount-fee); err != nil {
			return err
		}
		now := l.db.Now()
		id, err := store.InsertTransferTx(ctx, tx, now, a.FromUserID, a.ToUserID, a.Amount, fee, a.Message)
		if err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, now, a.FromUserID, -a.Amount, "transfer_out", id, a.Message); err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, now, a.ToUserID, a.Amount-fee, "transfer_in", id, a.Message); err != nil {
			return err
		}
		res = protocol.TransferResult{Success: true, TransferID: id, Fee: fee, NetReceived: a.Amount - fee, FromBalance: fromBal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("from", a.FromUserID).Str("to", a.ToUserID).Int64("amount", a.Amount).Int64("fee", fee).Msg("transfer")
	return &res, nil
}

// ClaimDaily pays the daily bonus once per DailyCooldown. A claim inside the
// cooldown is a result, not an error.
func (l *Ledger) ClaimDaily(ctx context.Context, a protocol.DailyArgs) (*protocol.DailyResult, error) {
	var res protocol.DailyResult
	err := l.idempotent(ctx, protocol.ProcDailyBonus, a.Nonce, &res, func(tx *sql.Tx) error {
		p, err := store.ProfileTx(ctx, tx, a.UserID)
		if err != nil {
			return notFound(err)
		}
		now := l.db.Now()
		if next := p.LastDailyAt.Add(protocol.DailyCooldown); !p.LastDailyAt.IsZero() && now.Before(next) {
			res = protocol.DailyResult{Success: false, Balance: p.Balance, Reason: "cooldown", NextAt: next}
			return nil
		}
		bal, err := l.adjust(ctx, tx, a.UserID, protocol.DailyBonus)
		if err != nil {
			return err
		}
		if err := store.TouchDailyTx(ctx, tx, a.UserID, now); err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, now, a.UserID, protocol.DailyBonus, protocol.AwardDaily, "", ""); err != nil {
			return err
		}
		res = protocol.DailyResult{Success: true, Bonus: protocol.DailyBonus, Balance: bal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Work pays a random wage between WorkMin and WorkMax once per WorkCooldown.
func (l *Ledger) Work(ctx context.Context, a protocol.WorkArgs) (*protocol.WorkResult, error) {
	var res protocol.WorkResult
	err := l.idempotent(ctx, protocol.ProcWorkShift, a.Nonce, &res, func(tx *sql.Tx) error {
		p, err := store.ProfileTx(ctx, tx, a.UserID)
		if err != nil {
			return notFound(err)
		}
		now := l.db.Now()
		if next := p.LastWorkAt.Add(protocol.WorkCooldown); !p.LastWorkAt.IsZero() && now.Before(next) {
			res = protocol.WorkResult{Success: false, Balance: p.Balance, Reason: "cooldown", NextAt: next}
			return nil
		}
		wage := int64(protocol.WorkMin + l.rng.Intn(protocol.WorkMax-protocol.WorkMin+1))
		bal, err := l.adjust(ctx, tx, a.UserID, wage)
		if err != nil {
			return err
		}
		if err := store.TouchWorkTx(ctx, tx, a.UserID, now); err != nil {
			return err
		}
		if err := store.AppendLedgerTx(ctx, tx, now, a.UserID, wage, protocol.AwardWork, "", ""); err != nil {
			return err
		}
		res = protocol.WorkResult{Success: true, Earned: wage, Balance: bal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &CurrencyError{Code: CodeNotFound, Message: "no such account"}
	}
	return err
}
