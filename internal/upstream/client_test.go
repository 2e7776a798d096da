package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 2*time.Second, zerolog.Nop())
}

func TestClient_FetchRows(t *testing.T) {
	t.Run("decodes top-level array and forwards cookie", func(t *testing.T) {
		var gotCookie, gotPath, gotQuery string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotPath = r.URL.EscapedPath()
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`[{"asset_class":"Equity","today_total":1250000.5},"junk"]`))
		})

		rows, err := c.FetchRows(context.Background(), Request{
			Path:   "/assetclass2/" + url.PathEscape("Private Equity"),
			Query:  url.Values{"currency": {"INR"}},
			Cookie: "session=abc",
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Equity", rows[0]["asset_class"])
		assert.Equal(t, json.Number("1250000.5"), rows[0]["today_total"])
		assert.Equal(t, "session=abc", gotCookie)
		assert.Equal(t, "/api/assetclass2/Private%20Equity", gotPath)
		assert.Equal(t, "currency=INR", gotQuery)
	})

	t.Run("401 maps to ErrUnauthorized", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.FetchRows(context.Background(), Request{Path: "/account"})
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("5xx maps to ErrUpstreamStatus", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.FetchRows(context.Background(), Request{Path: "/account"})
		assert.ErrorIs(t, err, apperrors.ErrUpstreamStatus)
	})

	t.Run("invalid JSON maps to ErrMalformedPayload", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})
		_, err := c.FetchRows(context.Background(), Request{Path: "/account"})
		assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
	})

	t.Run("dropped connection is unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
		})

		_, err := c.FetchRows(context.Background(), Request{Path: "/account"})
		assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
		// WHY: the transport error names the backend host; it is logged, not returned.
		assert.NotContains(t, err.Error(), "127.0.0.1")
	})

	t.Run("client timeout is a deadline", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)
		defer close(release)
		c := NewClient(srv.URL, 50*time.Millisecond, zerolog.Nop())

		_, err := c.FetchRows(context.Background(), Request{Path: "/account"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		release := make(chan struct{})
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.FetchRows(ctx, Request{Path: "/account"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUnwrap(t *testing.T) {
	decode := func(t *testing.T, s string) any {
		t.Helper()
		var v any
		require.NoError(t, json.Unmarshal([]byte(s), &v))
		return v
	}

	t.Run("explicit envelope", func(t *testing.T) {
		rows, err := Unwrap(decode(t, `{"subassets":[{"asset_class2":"Gold"}]}`), "$.subassets")
		require.NoError(t, err)
		assert.Equal(t, []model.RawRow{{"asset_class2": "Gold"}}, rows)
	})

	t.Run("explicit envelope missing", func(t *testing.T) {
		_, err := Unwrap(decode(t, `{"rows":[]}`), "$.subassets")
		assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
	})

	t.Run("auto-detects data and result wrappers", func(t *testing.T) {
		rows, err := Unwrap(decode(t, `{"data":[{"a":1}]}`), "")
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		rows, err = Unwrap(decode(t, `{"result":[{"a":1},{"a":2}]}`), "")
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("plain object is a single row", func(t *testing.T) {
		rows, err := Unwrap(decode(t, `{"today_total":5}`), "")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, float64(5), rows[0]["today_total"])
	})

	t.Run("scalar is malformed", func(t *testing.T) {
		_, err := Unwrap(decode(t, `"oops"`), "")
		assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
	})

	t.Run("empty array", func(t *testing.T) {
		rows, err := Unwrap(decode(t, `[]`), "")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
