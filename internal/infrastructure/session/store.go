package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// applies the schema. Use ":memory:" for a throwaway store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{db: conn, now: time.Now}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			access_token TEXT NOT NULL DEFAULT '',
			user_json    TEXT NOT NULL DEFAULT '',
			project_id   TEXT NOT NULL DEFAULT '',
			oauth_state  TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			expires_at   INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create sessions: %w", err)
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS sessions_expires_at ON sessions (expires_at)`); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	return nil
}

// Create starts a new empty session valid for ttl.
func (s *SQLiteStore) Create(ctx context.Context, ttl time.Duration) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session with id. Expired sessions are reported as
// ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sess      Session
		userJSON  string
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, access_token, user_json, project_id, oauth_state, created_at, expires_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.AccessToken, &userJSON, &sess.ProjectID, &sess.OAuthState, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	if !s.now().Before(sess.ExpiresAt) {
		return nil, ErrNotFound
	}

	if userJSON != "" {
		var user User
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			return nil, fmt.Errorf("decode session user: %w", err)
		}
		sess.User = &user
	}
	return &sess, nil
}

// Save inserts or replaces the session.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	var userJSON string
	if sess.User != nil {
		data, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("encode session user: %w", err)
		}
		userJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, access_token, user_json, project_id, oauth_state, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			user_json    = excluded.user_json,
			project_id   = excluded.project_id,
			oauth_state  = excluded.oauth_state,
			expires_at   = excluded.expires_at`,
		sess.ID, sess.AccessToken, userJSON, sess.ProjectID, sess.OAuthState,
		sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every expired session and returns how many were
// removed.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
