package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
)

// CredentialRepository stores the upstream session cookie of each dashboard session.
// Cookies are encrypted at rest as fernet tokens.
type CredentialRepository struct {
	db  *sql.DB
	key *fernet.Key
}

// NewCredentialRepository creates a new CredentialRepository that encrypts with key.
func NewCredentialRepository(db *sql.DB, key *fernet.Key) *CredentialRepository {
	return &CredentialRepository{db: db, key: key}
}

// Save encrypts and stores cookie for the session, replacing any previous value.
func (r *CredentialRepository) Save(sessionID, cookie string) error {
	token, err := fernet.EncryptAndSign([]byte(cookie), r.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO session_credential (session_id, token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at`,
		sessionID, string(token), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Get returns the decrypted cookie. Returns apperrors.ErrCredentialNotFound if none is stored.
func (r *CredentialRepository) Get(sessionID string) (string, error) {
	var token string
	err := r.db.QueryRow("SELECT token FROM session_credential WHERE session_id = ?", sessionID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query credential: %w", err)
	}

	msg := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{r.key})
	if msg == nil {
		return "", fmt.Errorf("failed to decrypt credential for session %s", sessionID)
	}
	return string(msg), nil
}

// Delete removes the stored credential, if any.
func (r *CredentialRepository) Delete(sessionID string) error {
	if _, err := r.db.Exec("DELETE FROM session_credential WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
