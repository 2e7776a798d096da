package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ndewijer/portfolio-dashboard/internal/api/response"
	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/validation"
)

const maxBodyBytes = 1 << 20

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON")
		}
	}
}

// parseJSON decodes the request body into T, rejecting unknown fields.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request body: %w", err)
	}
	return req, nil
}

// respondServiceError maps a service error onto an HTTP status. Backend failures are marked
// retryable.
func respondServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound),
		errors.Is(err, apperrors.ErrTableNotFound),
		errors.Is(err, apperrors.ErrPanelNotFound):
		response.RespondError(w, http.StatusNotFound, message, err.Error())
	case errors.Is(err, apperrors.ErrInvalidCurrency),
		errors.Is(err, apperrors.ErrInvalidDimension),
		errors.Is(err, apperrors.ErrInvalidPath),
		errors.Is(err, apperrors.ErrMissingRequiredField):
		response.RespondError(w, http.StatusBadRequest, message, err.Error())
	case errors.Is(err, apperrors.ErrNoDeeperLevel),
		errors.Is(err, apperrors.ErrNothingToGoBack):
		response.RespondError(w, http.StatusConflict, message, err.Error())
	case errors.Is(err, apperrors.ErrUnauthorized):
		response.RespondError(w, http.StatusUnauthorized, message, err.Error())
	case errors.Is(err, apperrors.ErrFailedToRetrieve),
		errors.Is(err, apperrors.ErrUpstreamStatus),
		errors.Is(err, apperrors.ErrUpstreamUnavailable),
		errors.Is(err, apperrors.ErrMalformedPayload):
		response.RespondRetryableError(w, http.StatusBadGateway, message, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.RespondRetryableError(w, http.StatusGatewayTimeout, message, err.Error())
	case errors.Is(err, apperrors.ErrControllerClosed):
		response.RespondRetryableError(w, http.StatusServiceUnavailable, message, err.Error())
	default:
		response.RespondError(w, http.StatusInternalServerError, message, err.Error())
	}
}

// respondTable sends a table view. A view whose root fetch failed is sent with 502 so clients
// can offer a retry.
func respondTable(w http.ResponseWriter, view drilldown.View) {
	status := http.StatusOK
	if view.Retry {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, view)
}

// isFetchError reports whether err came from a failed backend fetch.
func isFetchError(err error) bool {
	return errors.Is(err, apperrors.ErrFailedToRetrieve) ||
		errors.Is(err, apperrors.ErrUpstreamStatus) ||
		errors.Is(err, apperrors.ErrUpstreamUnavailable) ||
		errors.Is(err, apperrors.ErrMalformedPayload) ||
		errors.Is(err, context.DeadlineExceeded)
}

// respondValidationError sends 400 with the failing fields as details.
func respondValidationError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		response.RespondError(w, http.StatusBadRequest, "validation failed", verr.Fields)
		return
	}
	response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
}
