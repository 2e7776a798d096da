// Package upstream talks to the analytics backend that owns all portfolio figures.
//
// Every endpoint returns JSON rows with endpoint-specific field names. The client forwards the
// session cookie, maps error statuses onto sentinel errors, and unwraps the row array from the
// envelope the endpoint happens to use.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

const maxBodyBytes = 8 << 20

// fallbackEnvelopes are tried in order when an endpoint wraps its rows in an object.
var fallbackEnvelopes = []string{"$.data", "$.result", "$.subassets"}

// Request is one credentialed GET against the backend.
type Request struct {
	// Path is relative to the base URL and must already be escaped.
	Path   string
	Query  url.Values
	Cookie string
	// Envelope is a JSONPath selecting the row array. Empty means auto-detect.
	Envelope string
}

// Client is the backend REST client.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a backend client. A zero timeout disables the deadline.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "analytics-backend").Logger(),
	}
}

// URL joins the base URL, path, and query.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// FetchRows performs the request and returns the unwrapped rows.
func (c *Client) FetchRows(ctx context.Context, r Request) ([]model.RawRow, error) {
	body, err := c.get(ctx, r)
	if err != nil {
		return nil, err
	}
	rows, err := Unwrap(body, r.Envelope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Path, err)
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, r Request) (any, error) {
	target := c.URL(r.Path, r.Query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Cookie != "" {
		req.Header.Set("Cookie", r.Cookie)
	}

	c.log.Debug().Str("path", r.Path).Msg("Fetching")
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request %s: %w", r.Path, ctxErr)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("request %s: %w", r.Path, context.DeadlineExceeded)
		}
		// The transport error carries the backend URL, which stays in the log.
		c.log.Warn().Err(err).Str("path", r.Path).Msg("Backend unreachable")
		return nil, fmt.Errorf("%s: %w", r.Path, apperrors.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Fetched")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s: %w", r.Path, apperrors.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: %w: %d", r.Path, apperrors.ErrUpstreamStatus, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %v", r.Path, apperrors.ErrMalformedPayload, err)
	}
	return body, nil
}

// Unwrap extracts the row array from a decoded body. A top-level array is used as is; an object
// is searched with envelope, or with the common wrappers when envelope is empty, and otherwise
// treated as a single row. Non-object array elements are skipped.
func Unwrap(body any, envelope string) ([]model.RawRow, error) {
	if envelope != "" {
		v, err := jsonpath.Get(envelope, body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedPayload, envelope, err)
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an array", apperrors.ErrMalformedPayload, envelope)
		}
		return toRows(arr), nil
	}

	switch t := body.(type) {
	case []any:
		return toRows(t), nil
	case map[string]any:
		for _, path := range fallbackEnvelopes {
			if v, err := jsonpath.Get(path, t); err == nil {
				if arr, ok := v.([]any); ok {
					return toRows(arr), nil
				}
			}
		}
		return []model.RawRow{model.RawRow(t)}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %T", apperrors.ErrMalformedPayload, body)
	}
}

func toRows(arr []any) []model.RawRow {
	rows := make([]model.RawRow, 0, len(arr))
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			rows = append(rows, model.RawRow(obj))
		}
	}
	return rows
}
