package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/kpi"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/upstream"
)

// PanelView is a KPI panel rendered for one session.
type PanelView struct {
	Panel    string         `json:"panel"`
	Title    string         `json:"title"`
	Currency model.Currency `json:"currency"`
	Pan      string         `json:"pan"`
	Summary  kpi.Summary    `json:"summary"`
}

// PanelService fetches the KPI panels. Panels are fetched on every request.
type PanelService struct {
	sessions *SessionService
}

// NewPanelService creates a new PanelService.
func NewPanelService(sessions *SessionService) *PanelService {
	return &PanelService{sessions: sessions}
}

// Panel fetches panelID for the session. The overview panel switches to its per-PAN endpoint
// when a single PAN is selected.
func (s *PanelService) Panel(ctx context.Context, sessionID, panelID string) (PanelView, error) {
	panel, err := s.sessions.Registry().Panel(panelID)
	if err != nil {
		return PanelView{}, err
	}
	scope, err := s.sessions.Scope(sessionID)
	if err != nil {
		return PanelView{}, err
	}

	endpoint := panel.Endpoint
	if panel.PanEndpoint != "" && scope.Pan != "" && scope.Pan != model.PanAll {
		endpoint = panel.PanEndpoint
	}

	req := upstream.Request{
		Path:     drilldown.Expand(endpoint, nil, scope),
		Query:    url.Values{"currency": {scope.Currency.String()}},
		Cookie:   scope.Cookie,
		Envelope: panel.Envelope,
	}
	rows, err := s.sessions.Source().FetchRows(ctx, req)
	if err != nil {
		return PanelView{}, fmt.Errorf("%w: panel %s: %w", apperrors.ErrFailedToRetrieve, panelID, err)
	}

	return PanelView{
		Panel:    panel.ID,
		Title:    panel.Title,
		Currency: scope.Currency,
		Pan:      scope.Pan,
		Summary:  kpi.Build(rows, scope.Currency),
	}, nil
}
