package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-dashboard/internal/api/request"
	"github.com/ndewijer/portfolio-dashboard/internal/api/response"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/validation"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// SessionResponse represents a session. The backend cookie is never echoed back.
type SessionResponse struct {
	ID         string         `json:"id"`
	ClientID   string         `json:"client_id"`
	AccountID  string         `json:"account_id"`
	Pan        string         `json:"pan"`
	Currency   model.Currency `json:"currency"`
	CreatedAt  time.Time      `json:"created_at"`
	LastSeenAt time.Time      `json:"last_seen_at"`
}

func toSessionResponse(s model.Session) SessionResponse {
	return SessionResponse(s)
}

// CreateSession handles POST requests to open a dashboard session.
//
// Endpoint: POST /api/sessions
// Response: 201 Created with SessionResponse
// Error: 400 Bad Request for an invalid body
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateSessionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateSession(req); err != nil {
		respondValidationError(w, err)
		return
	}

	params := service.CreateSessionParams{
		ClientID:  req.ClientID,
		AccountID: req.AccountID,
		Pan:       req.Pan,
		Cookie:    req.Cookie,
	}
	if req.Currency != "" {
		// Already validated.
		params.Currency, _ = model.ParseCurrency(req.Currency)
	}

	sess, err := h.sessionService.CreateSession(params)
	if err != nil {
		respondServiceError(w, "failed to create session", err)
		return
	}

	respondJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// Session handles GET requests for one session.
//
// Endpoint: GET /api/sessions/{uuid}
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionService.GetSession(chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, "failed to retrieve session", err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// DeleteSession handles DELETE requests and ends the session.
//
// Endpoint: DELETE /api/sessions/{uuid}
// Response: 204 No Content
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.DeleteSession(chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, "failed to delete session", err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// UpdateCurrency switches the session currency and reloads every table in it.
//
// Endpoint: PUT /api/sessions/{uuid}/currency
func (h *SessionHandler) UpdateCurrency(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdateCurrencyRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateUpdateCurrency(req); err != nil {
		respondValidationError(w, err)
		return
	}
	cur, _ := model.ParseCurrency(req.Currency)

	sess, err := h.sessionService.SetCurrency(r.Context(), chi.URLParam(r, "uuid"), cur)
	if err != nil {
		respondServiceError(w, "failed to update currency", err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// UpdatePan selects the PAN the overview panel is scoped to. An empty PAN selects all.
//
// Endpoint: PUT /api/sessions/{uuid}/pan
func (h *SessionHandler) UpdatePan(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdatePanRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sess, err := h.sessionService.SetPan(chi.URLParam(r, "uuid"), req.Pan)
	if err != nil {
		respondServiceError(w, "failed to update pan", err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

// UpdateCredentials stores a new backend cookie for the session.
//
// Endpoint: PUT /api/sessions/{uuid}/credentials
// Response: 204 No Content
func (h *SessionHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdateCredentialsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateUpdateCredentials(req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.sessionService.SetCredentials(chi.URLParam(r, "uuid"), req.Cookie); err != nil {
		respondServiceError(w, "failed to update credentials", err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Pans lists the PAN selector options of the session's client.
//
// Endpoint: GET /api/sessions/{uuid}/pans
// Error: 502 Bad Gateway with retry when the backend fails
func (h *SessionHandler) Pans(w http.ResponseWriter, r *http.Request) {
	pans, err := h.sessionService.Pans(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, "failed to retrieve pans", err)
		return
	}
	respondJSON(w, http.StatusOK, pans)
}
