package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/projector"
	"github.com/ndewijer/portfolio-dashboard/internal/repository"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
)

// BreakdownTable is the table rendered by the replace-in-place navigator.
const BreakdownTable = "breakdown"

// CreateSessionParams holds the values a new session starts with.
type CreateSessionParams struct {
	ClientID  string
	AccountID string
	Pan       string
	Currency  model.Currency
	Cookie    string
}

// PanOption is one entry of the PAN selector.
type PanOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// workspace is the live, in-memory side of a session: one controller per table plus the
// breakdown navigator.
type workspace struct {
	mu        sync.Mutex
	session   model.Session
	cookie    string
	tables    map[string]*drilldown.Controller
	navigator *drilldown.Navigator
}

func (ws *workspace) snapshot() (model.Session, string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.session, ws.cookie
}

func (ws *workspace) close() {
	for _, c := range ws.tables {
		c.Close()
	}
	if ws.navigator != nil {
		ws.navigator.Close()
	}
}

// SessionService owns dashboard sessions. Session values and table selections are persisted so a
// session survives a restart; the drill-down state itself lives only in memory.
type SessionService struct {
	sessionRepo    *repository.SessionRepository
	tableStateRepo *repository.TableStateRepository
	credentialRepo *repository.CredentialRepository
	registry       *schema.Registry
	source         drilldown.RowSource
	defaultCur     model.Currency
	log            zerolog.Logger
	now            func() time.Time

	mu   sync.Mutex
	live map[string]*workspace
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	tableStateRepo *repository.TableStateRepository,
	credentialRepo *repository.CredentialRepository,
	registry *schema.Registry,
	source drilldown.RowSource,
	defaultCurrency model.Currency,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:    sessionRepo,
		tableStateRepo: tableStateRepo,
		credentialRepo: credentialRepo,
		registry:       registry,
		source:         source,
		defaultCur:     defaultCurrency,
		log:            log.With().Str("component", "sessions").Logger(),
		now:            time.Now,
		live:           make(map[string]*workspace),
	}
}

// Registry returns the table and panel registry sessions are built from.
func (s *SessionService) Registry() *schema.Registry { return s.registry }

// Source returns the backend row source.
func (s *SessionService) Source() drilldown.RowSource { return s.source }

// CreateSession persists a new session and builds its workspace. Nothing is fetched until a table
// is first viewed.
func (s *SessionService) CreateSession(p CreateSessionParams) (model.Session, error) {
	if strings.TrimSpace(p.ClientID) == "" || strings.TrimSpace(p.AccountID) == "" {
		return model.Session{}, fmt.Errorf("%w: client_id and account_id", apperrors.ErrMissingRequiredField)
	}
	if p.Pan == "" {
		p.Pan = model.PanAll
	}
	if p.Currency == "" {
		p.Currency = s.defaultCur
	}

	now := s.now().UTC()
	sess := model.Session{
		ID:         uuid.New().String(),
		ClientID:   p.ClientID,
		AccountID:  p.AccountID,
		Pan:        p.Pan,
		Currency:   p.Currency,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.sessionRepo.Create(sess); err != nil {
		return model.Session{}, err
	}
	if p.Cookie != "" {
		if err := s.credentialRepo.Save(sess.ID, p.Cookie); err != nil {
			return model.Session{}, err
		}
	}

	ws, err := s.build(sess, p.Cookie, nil)
	if err != nil {
		return model.Session{}, err
	}

	s.mu.Lock()
	s.live[sess.ID] = ws
	s.mu.Unlock()

	s.log.Info().Str("session_id", sess.ID).Str("client_id", sess.ClientID).Msg("Session created")
	return sess, nil
}

// GetSession returns the session and records the access.
func (s *SessionService) GetSession(id string) (model.Session, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return model.Session{}, err
	}
	sess, _ := ws.snapshot()
	return sess, nil
}

// DeleteSession tears down the workspace and removes every persisted trace of the session.
func (s *SessionService) DeleteSession(id string) error {
	s.mu.Lock()
	ws, ok := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()
	if ok {
		ws.close()
	}
	return s.sessionRepo.Delete(id)
}

// SetCurrency switches the session currency. Every loaded table and the navigator drop their
// caches and refetch their root level concurrently.
func (s *SessionService) SetCurrency(ctx context.Context, id string, cur model.Currency) (model.Session, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return model.Session{}, err
	}
	if err := s.sessionRepo.UpdateCurrency(id, cur); err != nil {
		return model.Session{}, err
	}

	ws.mu.Lock()
	ws.session.Currency = cur
	sess := ws.session
	ws.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for tableID, c := range ws.tables {
		g.Go(func() error {
			err := c.OnCurrencyChanged(gctx, cur)
			if errors.Is(err, apperrors.ErrFailedToRetrieve) {
				// Shown as a retryable error on the table itself.
				s.log.Warn().Err(err).Str("table", tableID).Msg("Root refetch failed after currency change")
				return nil
			}
			if errors.Is(err, apperrors.ErrStaleResponse) {
				return nil
			}
			return err
		})
	}
	if ws.navigator != nil {
		g.Go(func() error {
			err := ws.navigator.OnCurrencyChanged(gctx, cur)
			if errors.Is(err, apperrors.ErrFailedToRetrieve) || errors.Is(err, apperrors.ErrStaleResponse) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return sess, fmt.Errorf("failed to reload tables: %w", err)
	}

	s.log.Info().Str("session_id", id).Str("currency", cur.String()).Msg("Session currency changed")
	return sess, nil
}

// SetPan selects the PAN the overview panel is scoped to. Panels are never cached, so the next
// panel request picks it up.
func (s *SessionService) SetPan(id, pan string) (model.Session, error) {
	if strings.TrimSpace(pan) == "" {
		pan = model.PanAll
	}
	ws, err := s.workspace(id)
	if err != nil {
		return model.Session{}, err
	}
	if err := s.sessionRepo.UpdatePan(id, pan); err != nil {
		return model.Session{}, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.session.Pan = pan
	return ws.session, nil
}

// SetCredentials stores a new backend cookie and hands it to every table. Cached data is kept.
func (s *SessionService) SetCredentials(id, cookie string) error {
	ws, err := s.workspace(id)
	if err != nil {
		return err
	}
	if err := s.credentialRepo.Save(id, cookie); err != nil {
		return err
	}

	ws.mu.Lock()
	ws.cookie = cookie
	ws.mu.Unlock()

	for _, c := range ws.tables {
		c.SetCookie(cookie)
	}
	if ws.navigator != nil {
		ws.navigator.SetCookie(cookie)
	}
	return nil
}

// Pans lists the PAN selector entries of the session's client. "All" always comes first.
func (s *SessionService) Pans(ctx context.Context, id string) ([]PanOption, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	sess, cookie := ws.snapshot()
	pl := s.registry.Pans()

	scope := drilldown.Scope{ClientID: sess.ClientID, AccountID: sess.AccountID, Pan: sess.Pan, Cookie: cookie, Currency: sess.Currency}
	rows, err := s.source.FetchRows(ctx, drilldown.BuildRequest(pl.Endpoint, "", false, nil, scope))
	if err != nil {
		return nil, fmt.Errorf("%w: pan list: %w", apperrors.ErrFailedToRetrieve, err)
	}

	options := []PanOption{{Value: model.PanAll, Label: model.PanAll}}
	for _, row := range rows {
		value, ok := projector.FirstString(row, "pan_no")
		if !ok {
			continue
		}
		label, ok := projector.FirstString(row, pl.NameFields...)
		if !ok {
			label = value
		}
		options = append(options, PanOption{Value: value, Label: label})
	}
	return options, nil
}

// Controller returns the live controller of tableID.
func (s *SessionService) Controller(id, tableID string) (*drilldown.Controller, error) {
	if _, err := s.registry.Table(tableID); err != nil {
		return nil, err
	}
	ws, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	c, ok := ws.tables[tableID]
	if !ok {
		return nil, apperrors.ErrTableNotFound
	}
	return c, nil
}

// Navigator returns the live breakdown navigator.
func (s *SessionService) Navigator(id string) (*drilldown.Navigator, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return nil, err
	}
	if ws.navigator == nil {
		return nil, apperrors.ErrTableNotFound
	}
	return ws.navigator, nil
}

// Scope returns the values substituted into backend endpoints for the session.
func (s *SessionService) Scope(id string) (drilldown.Scope, error) {
	ws, err := s.workspace(id)
	if err != nil {
		return drilldown.Scope{}, err
	}
	sess, cookie := ws.snapshot()
	return scopeOf(sess, cookie), nil
}

// SaveSelection persists the dimension pair chosen for a table.
func (s *SessionService) SaveSelection(id, tableID string, dims schema.Dimensions) error {
	return s.tableStateRepo.Save(model.TableSelection{
		SessionID:    id,
		TableID:      tableID,
		Allocation:   dims.Allocation,
		Distribution: dims.Distribution,
	})
}

// SweepResult reports what one sweep removed.
type SweepResult struct {
	Closed  int
	Deleted int64
}

// Sweep closes workspaces idle for longer than idle and deletes sessions not seen within
// retention. Closed sessions are restored from storage when they are used again.
func (s *SessionService) Sweep(idle, retention time.Duration) (SweepResult, error) {
	now := s.now()
	var res SweepResult

	s.mu.Lock()
	var stale []*workspace
	for id, ws := range s.live {
		sess, _ := ws.snapshot()
		if sess.LastSeenAt.Before(now.Add(-idle)) {
			stale = append(stale, ws)
			delete(s.live, id)
		}
	}
	s.mu.Unlock()

	for _, ws := range stale {
		ws.close()
	}
	res.Closed = len(stale)

	deleted, err := s.sessionRepo.DeleteSeenBefore(now.Add(-retention))
	if err != nil {
		return res, err
	}
	res.Deleted = deleted
	return res, nil
}

// Close tears down every live workspace.
func (s *SessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.live {
		ws.close()
		delete(s.live, id)
	}
}

// workspace returns the live workspace of id, restoring it from storage if needed, and records
// the access.
func (s *SessionService) workspace(id string) (*workspace, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.live[id]
	if !ok {
		sess, err := s.sessionRepo.Get(id)
		if err != nil {
			return nil, err
		}
		cookie, err := s.credentialRepo.Get(id)
		if err != nil && !errors.Is(err, apperrors.ErrCredentialNotFound) {
			s.log.Warn().Err(err).Str("session_id", id).Msg("Stored credential unreadable, continuing without it")
		}
		selections, err := s.tableStateRepo.List(id)
		if err != nil {
			return nil, err
		}
		ws, err = s.build(sess, cookie, selections)
		if err != nil {
			return nil, err
		}
		s.live[id] = ws
		s.log.Debug().Str("session_id", id).Msg("Session restored")
	}

	if err := s.sessionRepo.Touch(id, now); err != nil {
		return nil, err
	}
	ws.mu.Lock()
	ws.session.LastSeenAt = now
	ws.mu.Unlock()
	return ws, nil
}

func (s *SessionService) build(sess model.Session, cookie string, selections []model.TableSelection) (*workspace, error) {
	chosen := make(map[string]schema.Dimensions, len(selections))
	for _, sel := range selections {
		chosen[sel.TableID] = schema.Dimensions{Allocation: sel.Allocation, Distribution: sel.Distribution}
	}

	scope := scopeOf(sess, cookie)
	ws := &workspace{
		session: sess,
		cookie:  cookie,
		tables:  make(map[string]*drilldown.Controller),
	}
	log := s.log.With().Str("session_id", sess.ID).Logger()

	for _, tbl := range s.registry.Tables() {
		fetcher := drilldown.NewLevelFetcher(s.source, tbl, log)

		dims := tbl.Defaults
		if d, ok := chosen[tbl.ID]; ok {
			if err := tbl.ValidateDimensions(d); err == nil {
				dims = d
			} else {
				log.Warn().Err(err).Str("table", tbl.ID).Msg("Ignoring stored selection")
			}
		}
		c, err := drilldown.NewController(fetcher, dims, scope, log)
		if err != nil {
			ws.close()
			return nil, fmt.Errorf("failed to build table %s: %w", tbl.ID, err)
		}
		ws.tables[tbl.ID] = c

		if tbl.ID == BreakdownTable {
			ws.navigator = drilldown.NewNavigator(fetcher, scope, log)
		}
	}
	return ws, nil
}

func scopeOf(sess model.Session, cookie string) drilldown.Scope {
	return drilldown.Scope{
		ClientID:  sess.ClientID,
		AccountID: sess.AccountID,
		Pan:       sess.Pan,
		Cookie:    cookie,
		Currency:  sess.Currency,
	}
}
