package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// SessionBuilder provides a fluent interface for creating test sessions.
//
// Example usage:
//
//	// Simple creation with defaults
//	sess := testutil.NewSession().Build(t, db)
//
//	// Customized session
//	sess := testutil.NewSession().
//	    WithClientID("C9").
//	    WithCurrency(model.CurrencyUSD).
//	    LastSeen(time.Now().Add(-time.Hour)).
//	    Build(t, db)
type SessionBuilder struct {
	ID         string
	ClientID   string
	AccountID  string
	Pan        string
	Currency   model.Currency
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewSession creates a SessionBuilder with sensible defaults.
func NewSession() *SessionBuilder {
	now := time.Now().UTC()
	return &SessionBuilder{
		ID:         MakeID(),
		ClientID:   "C1",
		AccountID:  "ACC1",
		Pan:        model.PanAll,
		Currency:   model.CurrencyINR,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// WithID sets a custom ID.
func (b *SessionBuilder) WithID(id string) *SessionBuilder {
	b.ID = id
	return b
}

// WithClientID sets a custom client.
func (b *SessionBuilder) WithClientID(id string) *SessionBuilder {
	b.ClientID = id
	return b
}

// WithAccountID sets a custom account.
func (b *SessionBuilder) WithAccountID(id string) *SessionBuilder {
	b.AccountID = id
	return b
}

// WithPan sets the selected PAN.
func (b *SessionBuilder) WithPan(pan string) *SessionBuilder {
	b.Pan = pan
	return b
}

// WithCurrency sets the session currency.
func (b *SessionBuilder) WithCurrency(cur model.Currency) *SessionBuilder {
	b.Currency = cur
	return b
}

// LastSeen sets the last activity time.
func (b *SessionBuilder) LastSeen(at time.Time) *SessionBuilder {
	b.LastSeenAt = at.UTC()
	return b
}

// Build creates the session in the database and returns it.
func (b *SessionBuilder) Build(t *testing.T, db *sql.DB) model.Session {
	t.Helper()

	layout := "2006-01-02T15:04:05.000000000Z07:00"
	query := `
		INSERT INTO session (id, client_id, account_id, pan, currency, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query, b.ID, b.ClientID, b.AccountID, b.Pan, string(b.Currency),
		b.CreatedAt.Format(layout), b.LastSeenAt.Format(layout))
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return model.Session{
		ID:         b.ID,
		ClientID:   b.ClientID,
		AccountID:  b.AccountID,
		Pan:        b.Pan,
		Currency:   b.Currency,
		CreatedAt:  b.CreatedAt,
		LastSeenAt: b.LastSeenAt,
	}
}

// CreateSession creates a session for clientID with default values.
//
// Example usage:
//
//	sess := testutil.CreateSession(t, db, "C1")
func CreateSession(t *testing.T, db *sql.DB, clientID string) model.Session {
	t.Helper()
	return NewSession().WithClientID(clientID).Build(t, db)
}
