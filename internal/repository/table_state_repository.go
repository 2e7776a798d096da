package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

// TableStateRepository persists the dimension pair each session last chose per table.
type TableStateRepository struct {
	db *sql.DB
}

// NewTableStateRepository creates a new TableStateRepository with the provided database connection.
func NewTableStateRepository(db *sql.DB) *TableStateRepository {
	return &TableStateRepository{db: db}
}

// Save inserts or replaces the selection for (session, table).
func (r *TableStateRepository) Save(sel model.TableSelection) error {
	_, err := r.db.Exec(`
		INSERT INTO table_state (session_id, table_id, allocation, distribution, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, table_id) DO UPDATE SET
			allocation = excluded.allocation,
			distribution = excluded.distribution,
			updated_at = excluded.updated_at`,
		sel.SessionID, sel.TableID, sel.Allocation, sel.Distribution, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save table state: %w", err)
	}
	return nil
}

// Get returns the stored selection. The boolean is false when none was saved.
func (r *TableStateRepository) Get(sessionID, tableID string) (model.TableSelection, bool, error) {
	sel := model.TableSelection{SessionID: sessionID, TableID: tableID}
	err := r.db.QueryRow(`
		SELECT allocation, distribution
		FROM table_state
		WHERE session_id = ? AND table_id = ?`, sessionID, tableID,
	).Scan(&sel.Allocation, &sel.Distribution)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TableSelection{}, false, nil
	}
	if err != nil {
		return model.TableSelection{}, false, fmt.Errorf("failed to query table state: %w", err)
	}
	return sel, true, nil
}

// List returns every stored selection of a session, ordered by table ID.
func (r *TableStateRepository) List(sessionID string) ([]model.TableSelection, error) {
	rows, err := r.db.Query(`
		SELECT session_id, table_id, allocation, distribution
		FROM table_state
		WHERE session_id = ?
		ORDER BY table_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query table state: %w", err)
	}
	defer rows.Close()

	selections := []model.TableSelection{}
	for rows.Next() {
		var sel model.TableSelection
		if err := rows.Scan(&sel.SessionID, &sel.TableID, &sel.Allocation, &sel.Distribution); err != nil {
			return nil, fmt.Errorf("failed to scan table state: %w", err)
		}
		selections = append(selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table state: %w", err)
	}
	return selections, nil
}
