package validation

import (
	"strings"

	"github.com/ndewijer/portfolio-dashboard/internal/api/request"
)

func ValidateUpdateDimensions(req request.UpdateDimensionsRequest) error {
	errors := make(map[string]string)
	if strings.TrimSpace(req.Allocation) == "" {
		errors["allocation"] = "allocation is required"
	}
	if strings.TrimSpace(req.Distribution) == "" {
		errors["distribution"] = "distribution is required"
	}
	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateToggle requires a non-empty path without blank or control-character segments.
func ValidateToggle(req request.ToggleRequest) error {
	if len(req.Path) == 0 {
		return &Error{Fields: map[string]string{"path": "path is required"}}
	}
	for _, key := range req.Path {
		if strings.TrimSpace(key) == "" {
			return &Error{Fields: map[string]string{"path": "path segments must not be empty"}}
		}
		if strings.ContainsFunc(key, isControl) {
			return &Error{Fields: map[string]string{"path": "path segments must not contain control characters"}}
		}
	}
	return nil
}

func ValidateDrill(req request.DrillRequest) error {
	if strings.TrimSpace(req.Key) == "" {
		return &Error{Fields: map[string]string{"key": "key is required"}}
	}
	return nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
