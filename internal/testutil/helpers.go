package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/repository"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/upstream"
)

// NewTestKey generates a fresh credential encryption key.
func NewTestKey(t *testing.T) *fernet.Key {
	t.Helper()

	var k fernet.Key
	if err := k.Generate(); err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return &k
}

// NewTestRegistry loads the embedded table registry.
func NewTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	reg, err := schema.Default()
	if err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}
	return reg
}

// NewTestSessionService wires a SessionService against db and the fake backend. Workspaces are
// closed when the test completes.
func NewTestSessionService(t *testing.T, db *sql.DB, up *MockUpstream) *service.SessionService {
	t.Helper()

	client := upstream.NewClient(up.URL(), 5*time.Second, zerolog.Nop())
	svc := service.NewSessionService(
		repository.NewSessionRepository(db),
		repository.NewTableStateRepository(db),
		repository.NewCredentialRepository(db, NewTestKey(t)),
		NewTestRegistry(t),
		client,
		model.CurrencyINR,
		zerolog.Nop(),
	)
	t.Cleanup(svc.Close)
	return svc
}

func NewTestTableService(t *testing.T, sessions *service.SessionService) *service.TableService {
	t.Helper()
	return service.NewTableService(sessions, zerolog.Nop())
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db, "test")
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}
