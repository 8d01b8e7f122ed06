// Package store is the sqlite-backed row store behind the realtime hub. It
// exposes the insert/select surface the chat client consumes and the
// transactional helpers the economy procedures run on.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"spacedan/shared/protocol"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrUsernameUsed = errors.New("store: username already exists")
)

// DB handles server-side database operations.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" in tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// a second pooled connection would see a different empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &DB{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// SetClock overrides the time source (tests).
func (s *DB) SetClock(now func() time.Time) { s.now = now }

func (s *DB) Now() time.Time { return s.now().UTC() }

func (s *DB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			balance INTEGER NOT NULL DEFAULT 0,
			last_daily_at INTEGER NOT NULL DEFAULT 0,
			last_work_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			is_vip INTEGER NOT NULL DEFAULT 0,
			reply_to_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at);

		CREATE TABLE IF NOT EXISTS ledger (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			amount INTEGER NOT NULL,
			type TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			from_user_id TEXT NOT NULL REFERENCES profiles(id),
			to_user_id TEXT NOT NULL REFERENCES profiles(id),
			amount INTEGER NOT NULL,
			fee INTEGER NOT NULL,
			net_amount INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS nonces (
			nonce TEXT PRIMARY KEY,
			proc TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Tx runs fn inside a transaction, committing when fn returns nil.
func (s *DB) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ---------------- profiles ----------------

// CreateProfile inserts a profile with the starting balance.
func (s *DB) CreateProfile(ctx context.Context, username, passwordHash string, balance int64) (*protocol.Profile, error) {
	p := &protocol.Profile{
		ID:        uuid.New().String(),
		Username:  strings.TrimSpace(username),
		Balance:   balance,
		CreatedAt: s.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, password_hash, balance, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Username, passwordHash, p.Balance, p.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrUsernameUsed
		}
		return nil, err
	}
	return p, nil
}

const profileCols = `id, username, avatar_url, balance, last_daily_at, last_work_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner, extra ...any) (*protocol.Profile, error) {
	var p protocol.Profile
	var daily, work, created int64
	dest := append([]any{&p.ID, &p.Username, &p.AvatarURL, &p.Balance, &daily, &work, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.LastDailyAt = fromMillis(daily)
	p.LastWorkAt = fromMillis(work)
	p.CreatedAt = fromMillis(created)
	return &p, nil
}

// ProfileByUsername returns the profile and its password hash.
func (s *DB) ProfileByUsername(ctx context.Context, username string) (*protocol.Profile, string, error) {
	var hash string
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+`, password_hash FROM profiles WHERE username = ?`, strings.TrimSpace(username))
	p, err := scanProfile(row, &hash)
	if err != nil {
		return nil, "", err
	}
	return p, hash, nil
}

// Profile returns a profile by id.
func (s *DB) Profile(ctx context.Context, id string) (*protocol.Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id))
}

// ProfileTx reads a profile inside an economy transaction.
func ProfileTx(ctx context.Context, tx *sql.Tx, id string) (*protocol.Profile, error) {
	return scanProfile(tx.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id))
}

// SelectProfiles lists public profiles, optionally filtered by id or username.
func (s *DB) SelectProfiles(ctx context.Context, f protocol.Filter, limit int) ([]protocol.Profile, error) {
	q := `SELECT ` + profileCols + ` FROM profiles`
	var args []any
	switch f.Column {
	case "":
	case "id", "username":
		q += ` WHERE ` + f.Column + ` = ?`
		args = append(args, f.Value)
	default:
		return nil, fmt.Errorf("profiles: unsupported filter column %q", f.Column)
	}
	q += ` ORDER BY username`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ---------------- messages ----------------

// InsertMessage stores a message and returns the confirmed row.
func (s *DB) InsertMessage(ctx context.Context, m protocol.NewMessage) (*protocol.MessageRow, error) {
	if strings.TrimSpace(m.ChannelID) == "" || strings.TrimSpace(m.Content) == "" {
		return nil, errors.New("store: channel and content are required")
	}
	row := &protocol.MessageRow{
		ID:        uuid.New().String(),
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: s.Now(),
		IsVIP:     m.IsVIP,
		ReplyToID: m.ReplyToID,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, user_id, content, is_vip, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.ChannelID, row.UserID, row.Content, row.IsVIP, row.ReplyToID, row.CreatedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	return row, nil
}

// SelectMessages returns up to limit messages of a channel. newestFirst
// orders by created_at descending, which is how history windows are loaded.
func (s *DB) SelectMessages(ctx context.Context, channelID string, limit int, newestFirst bool) ([]protocol.MessageRow, error) {
	dir := "ASC"
	if newestFirst {
		dir = "DESC"
	}
	q := `SELECT id, channel_id, user_id, content, is_vip, reply_to_id, created_at
		FROM messages WHERE channel_id = ? ORDER BY created_at ` + dir + `, rowid ` + dir
	args := []any{channelID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.MessageRow
	for rows.Next() {
		var m protocol.MessageRow
		var created int64
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Content, &m.IsVIP, &m.ReplyToID, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteChannelMessages removes every message of a channel.
func (s *DB) DeleteChannelMessages(ctx context.Context, channelID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ?`, channelID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
