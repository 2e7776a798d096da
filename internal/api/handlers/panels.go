package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-dashboard/internal/service"
)

// PanelHandler handles KPI panel HTTP requests
type PanelHandler struct {
	panelService *service.PanelService
}

// NewPanelHandler creates a new PanelHandler
func NewPanelHandler(panelService *service.PanelService) *PanelHandler {
	return &PanelHandler{
		panelService: panelService,
	}
}

// Panel fetches a KPI panel (overview, equity, cash, alternative).
//
// Endpoint: GET /api/sessions/{uuid}/panels/{panel}
// Error: 502 Bad Gateway with retry=true when the backend fails
func (h *PanelHandler) Panel(w http.ResponseWriter, r *http.Request) {
	panel, err := h.panelService.Panel(r.Context(), chi.URLParam(r, "uuid"), chi.URLParam(r, "panel"))
	if err != nil {
		respondServiceError(w, "failed to load panel", err)
		return
	}
	respondJSON(w, http.StatusOK, panel)
}
