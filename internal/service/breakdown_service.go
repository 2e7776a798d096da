package service

import (
	"context"
	"errors"

	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
)

// BreakdownService drives the replace-in-place breakdown chart of a session.
type BreakdownService struct {
	sessions *SessionService
}

// NewBreakdownService creates a new BreakdownService.
func NewBreakdownService(sessions *SessionService) *BreakdownService {
	return &BreakdownService{sessions: sessions}
}

// View renders the current level, loading the top level on first access.
func (s *BreakdownService) View(ctx context.Context, sessionID string, mode drilldown.TotalMode) (drilldown.NavigatorView, error) {
	n, err := s.sessions.Navigator(sessionID)
	if err != nil {
		return drilldown.NavigatorView{}, err
	}
	if !n.Loaded() {
		if err := tolerateRootFailure(n.Load(ctx)); err != nil {
			return drilldown.NavigatorView{}, err
		}
	}
	return n.View(mode), nil
}

// DrillIn replaces the current level with the children of key. A drill overtaken by a newer
// navigation is not an error.
func (s *BreakdownService) DrillIn(ctx context.Context, sessionID, key string, mode drilldown.TotalMode) (drilldown.NavigatorView, error) {
	n, err := s.sessions.Navigator(sessionID)
	if err != nil {
		return drilldown.NavigatorView{}, err
	}
	if err := n.DrillIn(ctx, key); err != nil && !errors.Is(err, apperrors.ErrStaleResponse) {
		return n.View(mode), err
	}
	return n.View(mode), nil
}

// Back returns to the previous level.
func (s *BreakdownService) Back(sessionID string, mode drilldown.TotalMode) (drilldown.NavigatorView, error) {
	n, err := s.sessions.Navigator(sessionID)
	if err != nil {
		return drilldown.NavigatorView{}, err
	}
	if err := n.Back(); err != nil {
		return n.View(mode), err
	}
	return n.View(mode), nil
}
