package request

// CreateSessionRequest represents the request body for opening a dashboard session.
// ClientID and AccountID are required; the rest fall back to defaults.
type CreateSessionRequest struct {
	ClientID  string `json:"client_id"`
	AccountID string `json:"account_id"`
	Pan       string `json:"pan,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Cookie    string `json:"cookie,omitempty"`
}

type UpdateCurrencyRequest struct {
	Currency string `json:"currency"`
}

type UpdatePanRequest struct {
	Pan string `json:"pan"`
}

// UpdateCredentialsRequest carries the backend session cookie, e.g. "connect.sid=...".
type UpdateCredentialsRequest struct {
	Cookie string `json:"cookie"`
}
