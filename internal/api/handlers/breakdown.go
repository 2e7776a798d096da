package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-dashboard/internal/api/request"
	"github.com/ndewijer/portfolio-dashboard/internal/api/response"
	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/validation"
)

// BreakdownHandler handles the breakdown chart HTTP requests. Every endpoint accepts
// ?mode=value|percentage to choose what the total sums.
type BreakdownHandler struct {
	breakdownService *service.BreakdownService
}

// NewBreakdownHandler creates a new BreakdownHandler
func NewBreakdownHandler(breakdownService *service.BreakdownService) *BreakdownHandler {
	return &BreakdownHandler{
		breakdownService: breakdownService,
	}
}

func totalMode(r *http.Request) drilldown.TotalMode {
	return drilldown.ParseTotalMode(r.URL.Query().Get("mode"))
}

func respondNavigator(w http.ResponseWriter, view drilldown.NavigatorView) {
	status := http.StatusOK
	if view.Retry {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, view)
}

// Breakdown renders the current level.
//
// Endpoint: GET /api/sessions/{uuid}/breakdown
func (h *BreakdownHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	view, err := h.breakdownService.View(r.Context(), chi.URLParam(r, "uuid"), totalMode(r))
	if err != nil {
		respondServiceError(w, "failed to retrieve breakdown", err)
		return
	}
	respondNavigator(w, view)
}

// Drill replaces the current level with the children of one slice. A failed fetch answers 502 with
// the current level unchanged and retry=true.
//
// Endpoint: POST /api/sessions/{uuid}/breakdown/drill
func (h *BreakdownHandler) Drill(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.DrillRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateDrill(req); err != nil {
		respondValidationError(w, err)
		return
	}

	view, err := h.breakdownService.DrillIn(r.Context(), chi.URLParam(r, "uuid"), req.Key, totalMode(r))
	if err != nil {
		if view.Table == "" || !isFetchError(err) {
			respondServiceError(w, "failed to drill into breakdown", err)
			return
		}
		view.Error = "failed to load slice data"
		view.Retry = true
	}
	respondNavigator(w, view)
}

// Back returns to the previous level.
//
// Endpoint: POST /api/sessions/{uuid}/breakdown/back
func (h *BreakdownHandler) Back(w http.ResponseWriter, r *http.Request) {
	view, err := h.breakdownService.Back(chi.URLParam(r, "uuid"), totalMode(r))
	if err != nil {
		respondServiceError(w, "failed to go back", err)
		return
	}
	respondNavigator(w, view)
}
