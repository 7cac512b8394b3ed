package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"comitebot/pkg/action"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS comitebot_sessions (
		user_id    BIGINT PRIMARY KEY,
		action     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)
`

// PostgresStore keeps one row per user so sessions survive a restart.
type PostgresStore struct {
	db   *sql.DB
	opts options
}

// OpenPostgres connects to dsn, checks the connection and creates the table
// when it does not exist.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: ping postgres: %w", err)
	}

	store, err := NewPostgresStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore uses an existing handle. The store owns db afterwards.
func NewPostgresStore(ctx context.Context, db *sql.DB, opts ...Option) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("session: postgres handle must not be nil")
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("session: create schema: %w", err)
	}
	return &PostgresStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *PostgresStore) Open(ctx context.Context, userID int64, typ action.Type) (Session, error) {
	sess := Session{UserID: userID, Action: typ, CreatedAt: s.opts.now().UTC()}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comitebot_sessions (user_id, action, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET action = EXCLUDED.action, created_at = EXCLUDED.created_at
	`, sess.UserID, string(sess.Action), sess.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("session: open %d: %w", userID, err)
	}
	return sess, nil
}

func (s *PostgresStore) Take(ctx context.Context, userID int64) (Session, bool, error) {
	sess, ok, err := s.delete(ctx, userID)
	if err != nil {
		return Session{}, false, fmt.Errorf("session: take %d: %w", userID, err)
	}
	if !ok || sess.Expired(s.opts.now(), s.opts.ttl) {
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID int64) (bool, error) {
	sess, ok, err := s.delete(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("session: clear %d: %w", userID, err)
	}
	return ok && !sess.Expired(s.opts.now(), s.opts.ttl), nil
}

func (s *PostgresStore) delete(ctx context.Context, userID int64) (Session, bool, error) {
	var (
		typ       string
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM comitebot_sessions
		WHERE user_id = $1
		RETURNING action, created_at
	`, userID).Scan(&typ, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	return Session{UserID: userID, Action: action.Type(typ), CreatedAt: createdAt}, true, nil
}

// Sweep deletes rows older than the configured TTL.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.opts.ttl <= 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM comitebot_sessions WHERE created_at <= $1`, now.Add(-s.opts.ttl).UTC())
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: sweep rows: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
