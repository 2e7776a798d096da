package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// SessionRepository provides data access methods for the session table.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the provided database connection.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(s model.Session) error {
	_, err := r.db.Exec(`
		INSERT INTO session (id, client_id, account_id, pan, currency, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ClientID, s.AccountID, s.Pan, string(s.Currency),
		formatTime(s.CreatedAt), formatTime(s.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID. Returns apperrors.ErrSessionNotFound if it does not exist.
func (r *SessionRepository) Get(id string) (model.Session, error) {
	var s model.Session
	var currency, created, lastSeen string

	err := r.db.QueryRow(`
		SELECT id, client_id, account_id, pan, currency, created_at, last_seen_at
		FROM session
		WHERE id = ?`, id,
	).Scan(&s.ID, &s.ClientID, &s.AccountID, &s.Pan, &currency, &created, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to query session: %w", err)
	}

	s.Currency = model.Currency(currency)
	if s.CreatedAt, err = ParseTime(created); err != nil {
		return model.Session{}, err
	}
	if s.LastSeenAt, err = ParseTime(lastSeen); err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// Touch records activity on a session.
func (r *SessionRepository) Touch(id string, at time.Time) error {
	return r.update("last_seen_at", formatTime(at), id)
}

// UpdateCurrency persists the session currency.
func (r *SessionRepository) UpdateCurrency(id string, cur model.Currency) error {
	return r.update("currency", string(cur), id)
}

// UpdatePan persists the selected PAN.
func (r *SessionRepository) UpdatePan(id, pan string) error {
	return r.update("pan", pan, id)
}

func (r *SessionRepository) update(column, value, id string) error {
	// column is always one of the fixed names above.
	res, err := r.db.Exec("UPDATE session SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", column, err)
	}
	if n == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session and, through cascading keys, its credential and table state.
func (r *SessionRepository) Delete(id string) error {
	res, err := r.db.Exec("DELETE FROM session WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// DeleteSeenBefore removes every session idle since before cutoff and returns how many were
// removed.
func (r *SessionRepository) DeleteSeenBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM session WHERE last_seen_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}
