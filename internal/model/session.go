package model

import "time"

// PanAll selects the aggregate across every PAN of a client.
const PanAll = "All"

// Session represents a persisted dashboard session.
type Session struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	AccountID  string    `json:"account_id"`
	Pan        string    `json:"pan"`
	Currency   Currency  `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TableSelection is the persisted dimension pair a session last chose for a table.
type TableSelection struct {
	SessionID    string `json:"session_id"`
	TableID      string `json:"table_id"`
	Allocation   string `json:"allocation"`
	Distribution string `json:"distribution"`
}
