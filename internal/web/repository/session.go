package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/foxzi/coldreach/internal/web/models"
	"github.com/foxzi/coldreach/internal/web/seal"
)

// SessionRepository stores sessions with their tokens sealed
type SessionRepository struct {
	db  *sql.DB
	box *seal.Box
}

func NewSessionRepository(db *sql.DB, box *seal.Box) *SessionRepository {
	return &SessionRepository{db: db, box: box}
}

// Create inserts a new session. ID must be set by the caller.
func (r *SessionRepository) Create(s *models.Session) error {
	access, refresh, err := r.sealTokens(s)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err = r.db.Exec(`
		INSERT INTO sessions (id, user_id, email, first_name, last_name, access_token, refresh_token, token_expires_at, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Email, s.FirstName, s.LastName, access, refresh, s.TokenExpiresAt.UTC(), s.ExpiresAt.UTC(), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID returns a session or nil if it does not exist
func (r *SessionRepository) GetByID(id string) (*models.Session, error) {
	s := &models.Session{}
	var access, refresh []byte

	err := r.db.QueryRow(`
		SELECT id, user_id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), access_token, refresh_token,
			token_expires_at, expires_at, created_at, updated_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.Email, &s.FirstName, &s.LastName, &access, &refresh,
		&s.TokenExpiresAt, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.AccessToken, err = r.box.OpenString(access); err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	if s.RefreshToken, err = r.box.OpenString(refresh); err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	return s, nil
}

// UpdateTokens replaces the token grant and user metadata of a session
func (r *SessionRepository) UpdateTokens(s *models.Session) error {
	access, refresh, err := r.sealTokens(s)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()

	res, err := r.db.Exec(`
		UPDATE sessions SET email = ?, first_name = ?, last_name = ?, access_token = ?, refresh_token = ?,
			token_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		s.Email, s.FirstName, s.LastName, access, refresh, s.TokenExpiresAt.UTC(), s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", s.ID)
	}
	return nil
}

// Delete removes a session and reports whether it existed
func (r *SessionRepository) Delete(id string) (bool, error) {
	res, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteExpired removes sessions past their expiry and returns how many
func (r *SessionRepository) DeleteExpired(now time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActive returns the number of unexpired sessions
func (r *SessionRepository) CountActive(now time.Time) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE expires_at > ?", now.UTC()).Scan(&n)
	return n, err
}

func (r *SessionRepository) sealTokens(s *models.Session) ([]byte, []byte, error) {
	access, err := r.box.SealString(s.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := r.box.SealString(s.RefreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}
	return access, refresh, nil
}
