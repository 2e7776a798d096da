package service

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/export"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
)

// TableService exposes the drill-down tables of a session.
type TableService struct {
	sessions *SessionService
	log      zerolog.Logger
}

// NewTableService creates a new TableService.
func NewTableService(sessions *SessionService, log zerolog.Logger) *TableService {
	return &TableService{
		sessions: sessions,
		log:      log.With().Str("component", "tables").Logger(),
	}
}

// ToggleResult is the state a row ended in plus the table rendered afterwards.
type ToggleResult struct {
	State model.RowState `json:"state"`
	View  drilldown.View `json:"view"`
}

// View renders a table, loading its root level on first access. A failed root fetch is reported
// inside the view, not as an error.
func (s *TableService) View(ctx context.Context, sessionID, tableID string) (drilldown.View, error) {
	c, err := s.sessions.Controller(sessionID, tableID)
	if err != nil {
		return drilldown.View{}, err
	}
	if !c.Loaded() {
		if err := tolerateRootFailure(c.Load(ctx)); err != nil {
			return drilldown.View{}, err
		}
	}
	return c.View(), nil
}

// SetDimensions switches the dimension pair of a table and persists the choice.
func (s *TableService) SetDimensions(ctx context.Context, sessionID, tableID string, dims schema.Dimensions) (drilldown.View, error) {
	c, err := s.sessions.Controller(sessionID, tableID)
	if err != nil {
		return drilldown.View{}, err
	}
	if err := c.Table().ValidateDimensions(dims); err != nil {
		return drilldown.View{}, err
	}
	if err := s.sessions.SaveSelection(sessionID, tableID, dims); err != nil {
		return drilldown.View{}, err
	}
	if err := tolerateRootFailure(c.OnDimensionChanged(ctx, dims)); err != nil {
		return drilldown.View{}, err
	}
	return c.View(), nil
}

// Toggle expands or collapses the row at path. A failed drill leaves the row collapsed and is
// returned as an error alongside the unchanged view.
func (s *TableService) Toggle(ctx context.Context, sessionID, tableID string, path model.DrillPath) (ToggleResult, error) {
	c, err := s.sessions.Controller(sessionID, tableID)
	if err != nil {
		return ToggleResult{}, err
	}
	if !c.Loaded() {
		if err := tolerateRootFailure(c.Load(ctx)); err != nil {
			return ToggleResult{}, err
		}
	}

	state, err := c.Toggle(ctx, path)
	if errors.Is(err, apperrors.ErrStaleResponse) {
		// A newer toggle or reset owns the row now.
		err = nil
	}
	return ToggleResult{State: state, View: c.View()}, err
}

// Refresh discards everything fetched for the table and reloads its root.
func (s *TableService) Refresh(ctx context.Context, sessionID, tableID string) (drilldown.View, error) {
	c, err := s.sessions.Controller(sessionID, tableID)
	if err != nil {
		return drilldown.View{}, err
	}
	if err := tolerateRootFailure(c.Refresh(ctx)); err != nil {
		return drilldown.View{}, err
	}
	return c.View(), nil
}

// Export writes the table as currently expanded to w as an xlsx workbook.
func (s *TableService) Export(ctx context.Context, sessionID, tableID string, w io.Writer) error {
	view, err := s.View(ctx, sessionID, tableID)
	if err != nil {
		return err
	}
	if view.Error != "" {
		return apperrors.ErrFailedToRetrieve
	}
	return export.WriteXLSX(w, view)
}

// tolerateRootFailure swallows errors that the view already reports on its own.
func tolerateRootFailure(err error) error {
	if errors.Is(err, apperrors.ErrFailedToRetrieve) || errors.Is(err, apperrors.ErrStaleResponse) {
		return nil
	}
	return err
}
