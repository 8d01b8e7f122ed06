package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Transaction helpers used by the economy procedures. They never commit on
// their own; callers run them inside DB.Tx.

// SetBalanceTx overwrites a profile balance.
func SetBalanceTx(ctx context.Context, tx *sql.Tx, userID string, balance int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET balance = ? WHERE id = ?`, balance, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendLedgerTx records one balance movement.
func AppendLedgerTx(ctx context.Context, tx *sql.Tx, at time.Time, userID string, amount int64, typ, reference, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger (id, user_id, amount, type, reference, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), userID, amount, typ, reference, description, at.UnixMilli())
	return err
}

// InsertTransferTx records a transfer and returns its id.
func InsertTransferTx(ctx context.Context, tx *sql.Tx, at time.Time, from, to string, amount, fee int64, message string) (string, error) {
	id := uuid.New().String()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (id, from_user_id, to_user_id, amount, fee, net_amount, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, from, to, amount, fee, amount-fee, message, at.UnixMilli())
	return id, err
}

// TouchDailyTx and TouchWorkTx stamp the cooldown columns.
func TouchDailyTx(ctx context.Context, tx *sql.Tx, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE profiles SET last_daily_at = ? WHERE id = ?`, at.UnixMilli(), userID)
	return err
}

func TouchWorkTx(ctx context.Context, tx *sql.Tx, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE profiles SET last_work_at = ? WHERE id = ?`, at.UnixMilli(), userID)
	return err
}

// NonceResultTx returns the stored result for a nonce, or ok=false when the
// nonce has not been spent yet.
func NonceResultTx(ctx context.Context, tx *sql.Tx, nonce string) (result string, ok bool, err error) {
	err = tx.QueryRowContext(ctx, `SELECT result FROM nonces WHERE nonce = ?`, nonce).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result, true, nil
}

// SaveNonceTx marks nonce as spent with the result it produced.
func SaveNonceTx(ctx context.Context, tx *sql.Tx, at time.Time, nonce, proc, result string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO nonces (nonce, proc, result, created_at) VALUES (?, ?, ?, ?)`,
		nonce, proc, result, at.UnixMilli())
	return err
}

// PruneNonces drops nonces older than cutoff.
func (s *DB) PruneNonces(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nonces WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LedgerCount returns the number of ledger rows for a user (tests, audits).
func (s *DB) LedgerCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
