package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ndewijer/portfolio-dashboard/internal/api/request"
	"github.com/ndewijer/portfolio-dashboard/internal/api/response"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TableHandler handles drill-down table HTTP requests
type TableHandler struct {
	tableService *service.TableService
}

// NewTableHandler creates a new TableHandler
func NewTableHandler(tableService *service.TableService) *TableHandler {
	return &TableHandler{
		tableService: tableService,
	}
}

// ToggleResponse is the state the toggled row ended in plus the re-rendered table. Error is set
// when the drill failed and the row went back to collapsed.
type ToggleResponse struct {
	service.ToggleResult
	Error string `json:"error,omitempty"`
	Retry bool   `json:"retry,omitempty"`
}

// Table renders a table, loading it on first access.
//
// Endpoint: GET /api/sessions/{uuid}/tables/{table}
// Response: 200 OK with the table view, 502 with the view and retry=true if the root fetch failed
func (h *TableHandler) Table(w http.ResponseWriter, r *http.Request) {
	view, err := h.tableService.View(r.Context(), chi.URLParam(r, "uuid"), chi.URLParam(r, "table"))
	if err != nil {
		respondServiceError(w, "failed to retrieve table", err)
		return
	}
	respondTable(w, view)
}

// UpdateDimensions switches the allocation and distribution of a table.
//
// Endpoint: PUT /api/sessions/{uuid}/tables/{table}/dimensions
func (h *TableHandler) UpdateDimensions(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.UpdateDimensionsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateUpdateDimensions(req); err != nil {
		respondValidationError(w, err)
		return
	}

	dims := schema.Dimensions{Allocation: req.Allocation, Distribution: req.Distribution}
	view, err := h.tableService.SetDimensions(r.Context(), chi.URLParam(r, "uuid"), chi.URLParam(r, "table"), dims)
	if err != nil {
		respondServiceError(w, "failed to update dimensions", err)
		return
	}
	respondTable(w, view)
}

// Toggle expands or collapses one row.
//
// Endpoint: POST /api/sessions/{uuid}/tables/{table}/toggle
// Response: 200 OK with ToggleResponse; 502 with ToggleResponse when the drill fetch failed
func (h *TableHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.ToggleRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateToggle(req); err != nil {
		respondValidationError(w, err)
		return
	}

	res, err := h.tableService.Toggle(r.Context(), chi.URLParam(r, "uuid"), chi.URLParam(r, "table"), model.DrillPath(req.Path))
	if err != nil {
		if res.View.Table == "" || !isFetchError(err) {
			respondServiceError(w, "failed to toggle row", err)
			return
		}
		respondJSON(w, http.StatusBadGateway, ToggleResponse{
			ToggleResult: res,
			Error:        "failed to load row data",
			Retry:        true,
		})
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponse{ToggleResult: res})
}

// Refresh discards cached data and reloads the table root.
//
// Endpoint: POST /api/sessions/{uuid}/tables/{table}/refresh
func (h *TableHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	view, err := h.tableService.Refresh(r.Context(), chi.URLParam(r, "uuid"), chi.URLParam(r, "table"))
	if err != nil {
		respondServiceError(w, "failed to refresh table", err)
		return
	}
	respondTable(w, view)
}

// Export downloads the table as currently expanded as an xlsx workbook.
//
// Endpoint: GET /api/sessions/{uuid}/tables/{table}/export
func (h *TableHandler) Export(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "table")

	var buf bytes.Buffer
	if err := h.tableService.Export(r.Context(), chi.URLParam(r, "uuid"), tableID, &buf); err != nil {
		respondServiceError(w, "failed to export table", err)
		return
	}

	filename := fmt.Sprintf("%s-%s.xlsx", tableID, time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Str("table", tableID).Msg("Failed to write export")
	}
}
