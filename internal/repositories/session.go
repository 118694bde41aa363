package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/journeyx/internal/shared"
)

// StoredSession is a persisted login. The newest live row is the active session.
type StoredSession struct {
	ID          string
	Sequence    int
	UserID      int64
	Username    string
	AccessToken string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Expired reports whether the access token is past its expiry.
func (s *StoredSession) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// SessionRepository persists access tokens between CLI runs.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session with generated ID and sequence
func (r *SessionRepository) Create(s *StoredSession) error {
	if s.AccessToken == "" || s.UserID == 0 {
		return fmt.Errorf("%w: session needs a token and a user", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	s.ID = shared.GenerateID()
	s.Sequence = sequence
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sessions (id, sequence, user_id, username, access_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, s.ID, s.Sequence, s.UserID, s.Username, s.AccessToken, nullTime(s.ExpiresAt), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Active returns the newest session that was not deleted.
// It returns [shared.ErrNotAuthenticated] when there is none.
func (r *SessionRepository) Active() (*StoredSession, error) {
	query := `
		SELECT id, sequence, user_id, username, access_token, expires_at, created_at, deleted_at
		FROM sessions
		WHERE deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`

	s, err := scanSession(r.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

// UpdateToken stores a refreshed access token on an existing session
func (r *SessionRepository) UpdateToken(id, token string, expiresAt *time.Time) error {
	result, err := r.db.Exec(`
		UPDATE sessions
		SET access_token = ?, expires_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, token, nullTime(expiresAt), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectRow(result, "session not found or already deleted: "+id)
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRow(result, "session not found or already deleted: "+id)
}

// DeleteAll soft-deletes every live session, as on logout
func (r *SessionRepository) DeleteAll() error {
	if _, err := r.db.Exec(`UPDATE sessions SET deleted_at = ? WHERE deleted_at IS NULL`, time.Now()); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// List retrieves sessions newest first, excluding soft-deleted ones
func (r *SessionRepository) List() ([]*StoredSession, error) {
	rows, err := r.db.Query(`
		SELECT id, sequence, user_id, username, access_token, expires_at, created_at, deleted_at
		FROM sessions
		WHERE deleted_at IS NULL
		ORDER BY sequence DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*StoredSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func scanSession(row scanner) (*StoredSession, error) {
	var (
		s         StoredSession
		expiresAt sql.NullTime
		deletedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Sequence, &s.UserID, &s.Username, &s.AccessToken, &expiresAt, &s.CreatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		s.ExpiresAt = &expiresAt.Time
	}
	if deletedAt.Valid {
		s.DeletedAt = &deletedAt.Time
	}
	return &s, nil
}
