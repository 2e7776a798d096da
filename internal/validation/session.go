package validation

import (
	"strings"

	"github.com/ndewijer/portfolio-dashboard/internal/api/request"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

const maxIDLength = 64

func ValidateCreateSession(req request.CreateSessionRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.ClientID) == "" {
		errors["client_id"] = "client_id is required"
	} else if len(req.ClientID) > maxIDLength {
		errors["client_id"] = "client_id must be 64 characters or less"
	}

	if strings.TrimSpace(req.AccountID) == "" {
		errors["account_id"] = "account_id is required"
	} else if len(req.AccountID) > maxIDLength {
		errors["account_id"] = "account_id must be 64 characters or less"
	}

	if len(req.Pan) > maxIDLength {
		errors["pan"] = "pan must be 64 characters or less"
	}

	// Optional but has constraints
	if req.Currency != "" {
		if _, err := model.ParseCurrency(req.Currency); err != nil {
			errors["currency"] = "currency must be INR or USD"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

func ValidateUpdateCurrency(req request.UpdateCurrencyRequest) error {
	if _, err := model.ParseCurrency(req.Currency); err != nil {
		return &Error{Fields: map[string]string{"currency": "currency must be INR or USD"}}
	}
	return nil
}

func ValidateUpdateCredentials(req request.UpdateCredentialsRequest) error {
	if strings.TrimSpace(req.Cookie) == "" {
		return &Error{Fields: map[string]string{"cookie": "cookie is required"}}
	}
	return nil
}
