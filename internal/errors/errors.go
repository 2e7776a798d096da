package errors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrSessionNotFound indicates that a dashboard session with the given ID does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTableNotFound indicates that no drill-down table is registered under the given ID.
	ErrTableNotFound = errors.New("table not found")

	// ErrPanelNotFound indicates that no KPI panel is registered under the given ID.
	ErrPanelNotFound = errors.New("panel not found")

	// ErrCredentialNotFound indicates that no upstream credential is stored for a session.
	ErrCredentialNotFound = errors.New("credential not found")
)

// Validation errors represent malformed input from API callers or configuration.
var (
	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyID indicates that a required ID parameter is empty or missing.
	ErrEmptyID = errors.New("ID cannot be empty")

	// ErrInvalidCurrency indicates a currency code other than INR or USD.
	ErrInvalidCurrency = errors.New("unsupported currency")

	// ErrInvalidDimension indicates an allocation or distribution value the table does not offer.
	ErrInvalidDimension = errors.New("unsupported dimension")

	// ErrInvalidPath indicates a drill path that does not address an existing row.
	ErrInvalidPath = errors.New("invalid drill path")

	ErrMissingRequiredField = errors.New("missing required field")
)

// Drill-down errors describe why a level could not be produced.
var (
	// ErrNoDeeperLevel indicates that the (allocation, distribution, depth) triple has no endpoint,
	// so the row is a leaf.
	ErrNoDeeperLevel = errors.New("no deeper level for this row")

	// ErrControllerClosed indicates that the owning session was torn down.
	ErrControllerClosed = errors.New("drill-down controller closed")

	// ErrStaleResponse indicates a response that arrived after the table state moved on.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrNothingToGoBack indicates a Back request on a navigator already at its first level.
	ErrNothingToGoBack = errors.New("already at top level")
)

// Upstream errors represent failures talking to the analytics backend.
var (
	// ErrUnauthorized indicates the backend answered 401; the caller must sign in again.
	ErrUnauthorized = errors.New("upstream rejected credentials")

	// ErrUpstreamStatus indicates any other non-2xx status.
	ErrUpstreamStatus = errors.New("upstream returned error status")

	// ErrUpstreamUnavailable indicates the backend could not be reached or dropped the connection.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedPayload indicates a body that is not JSON or has no recognizable row array.
	ErrMalformedPayload = errors.New("malformed upstream payload")

	ErrFailedToRetrieve = errors.New("failed to retrieve data")
)
