package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-dashboard/internal/api/response"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/testutil"
)

func setupSessionHandler(t *testing.T, up *testutil.MockUpstream) (*SessionHandler, *service.SessionService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestSessionService(t, db, up)
	return NewSessionHandler(svc), svc
}

// openSession creates a session directly through the service for handler tests that need one.
func openSession(t *testing.T, svc *service.SessionService) model.Session {
	t.Helper()
	sess, err := svc.CreateSession(service.CreateSessionParams{ClientID: "C1", AccountID: "ACC1", Cookie: "sid=abc"})
	require.NoError(t, err)
	return sess
}

func TestSessionHandler_CreateSession(t *testing.T) {
	t.Run("creates session with defaults", func(t *testing.T) {
		handler, _ := setupSessionHandler(t, testutil.NewMockUpstream(t))

		req := httptest.NewRequest(http.MethodPost, "/api/sessions",
			strings.NewReader(`{"client_id": "C1", "account_id": "ACC1", "cookie": "sid=abc"}`))
		w := httptest.NewRecorder()
		handler.CreateSession(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp SessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, model.PanAll, resp.Pan)
		assert.Equal(t, model.CurrencyINR, resp.Currency)
		// WHY: the backend cookie is a credential and must never leave the gateway.
		assert.NotContains(t, w.Body.String(), "sid=abc")
	})

	t.Run("honours requested currency", func(t *testing.T) {
		handler, _ := setupSessionHandler(t, testutil.NewMockUpstream(t))

		req := httptest.NewRequest(http.MethodPost, "/api/sessions",
			strings.NewReader(`{"client_id": "C1", "account_id": "ACC1", "currency": "USD"}`))
		w := httptest.NewRecorder()
		handler.CreateSession(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp SessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, model.CurrencyUSD, resp.Currency)
	})

	t.Run("validation failures list fields", func(t *testing.T) {
		handler, _ := setupSessionHandler(t, testutil.NewMockUpstream(t))

		req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"client_id": "C1"}`))
		w := httptest.NewRecorder()
		handler.CreateSession(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp struct {
			Details map[string]string `json:"details"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Contains(t, resp.Details, "account_id")
	})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"client_id": `},
		{"unknown field", `{"client_id": "C1", "account_id": "ACC1", "role": "admin"}`},
		{"missing account", `{"client_id": "C1"}`},
		{"unsupported currency", `{"client_id": "C1", "account_id": "ACC1", "currency": "EUR"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := setupSessionHandler(t, testutil.NewMockUpstream(t))

			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.CreateSession(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestSessionHandler_Session(t *testing.T) {
	handler, svc := setupSessionHandler(t, testutil.NewMockUpstream(t))
	sess := openSession(t, svc)

	t.Run("returns session", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/sessions/"+sess.ID,
			map[string]string{"uuid": sess.ID})
		w := httptest.NewRecorder()
		handler.Session(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp SessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, sess.ID, resp.ID)
		assert.Equal(t, "C1", resp.ClientID)
	})

	t.Run("unknown session", func(t *testing.T) {
		id := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/sessions/"+id,
			map[string]string{"uuid": id})
		w := httptest.NewRecorder()
		handler.Session(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSessionHandler_DeleteSession(t *testing.T) {
	handler, svc := setupSessionHandler(t, testutil.NewMockUpstream(t))
	sess := openSession(t, svc)
	params := map[string]string{"uuid": sess.ID}

	w := httptest.NewRecorder()
	handler.DeleteSession(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/sessions/"+sess.ID, params))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	handler.DeleteSession(w, testutil.NewRequestWithURLParams(http.MethodDelete, "/api/sessions/"+sess.ID, params))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_UpdateCurrency(t *testing.T) {
	up := testutil.NewMockUpstream(t)
	handler, svc := setupSessionHandler(t, up)
	sess := openSession(t, svc)
	params := map[string]string{"uuid": sess.ID}

	t.Run("switches currency", func(t *testing.T) {
		req := testutil.NewJSONRequestWithURLParams(http.MethodPut, "/api/sessions/"+sess.ID+"/currency",
			`{"currency": "USD"}`, params)
		w := httptest.NewRecorder()
		handler.UpdateCurrency(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp SessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, model.CurrencyUSD, resp.Currency)
	})

	t.Run("rejects unsupported currency", func(t *testing.T) {
		req := testutil.NewJSONRequestWithURLParams(http.MethodPut, "/api/sessions/"+sess.ID+"/currency",
			`{"currency": "GBP"}`, params)
		w := httptest.NewRecorder()
		handler.UpdateCurrency(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionHandler_UpdatePan(t *testing.T) {
	handler, svc := setupSessionHandler(t, testutil.NewMockUpstream(t))
	sess := openSession(t, svc)

	req := testutil.NewJSONRequestWithURLParams(http.MethodPut, "/api/sessions/"+sess.ID+"/pan",
		`{"pan": "ABCDE1234F"}`, map[string]string{"uuid": sess.ID})
	w := httptest.NewRecorder()
	handler.UpdatePan(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ABCDE1234F", resp.Pan)
}

func TestSessionHandler_UpdateCredentials(t *testing.T) {
	handler, svc := setupSessionHandler(t, testutil.NewMockUpstream(t))
	sess := openSession(t, svc)
	params := map[string]string{"uuid": sess.ID}

	t.Run("stores cookie", func(t *testing.T) {
		req := testutil.NewJSONRequestWithURLParams(http.MethodPut, "/api/sessions/"+sess.ID+"/credentials",
			`{"cookie": "sid=new"}`, params)
		w := httptest.NewRecorder()
		handler.UpdateCredentials(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	})

	t.Run("requires cookie", func(t *testing.T) {
		req := testutil.NewJSONRequestWithURLParams(http.MethodPut, "/api/sessions/"+sess.ID+"/credentials",
			`{"cookie": "  "}`, params)
		w := httptest.NewRecorder()
		handler.UpdateCredentials(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionHandler_Pans(t *testing.T) {
	up := testutil.NewMockUpstream(t).
		Respond("/pan-list/C1", []map[string]any{{"pan_no": "ABCDE1234F", "account_name": "Alice"}})
	handler, svc := setupSessionHandler(t, up)
	sess := openSession(t, svc)
	params := map[string]string{"uuid": sess.ID}

	t.Run("lists options", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Pans(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/sessions/"+sess.ID+"/pans", params))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var pans []service.PanOption
		require.NoError(t, json.NewDecoder(w.Body).Decode(&pans))
		assert.Equal(t, []service.PanOption{
			{Value: "All", Label: "All"},
			{Value: "ABCDE1234F", Label: "Alice"},
		}, pans)
	})

	t.Run("backend failure is retryable", func(t *testing.T) {
		up.RespondStatus("/pan-list/C1", http.StatusInternalServerError)

		w := httptest.NewRecorder()
		handler.Pans(w, testutil.NewRequestWithURLParams(http.MethodGet, "/api/sessions/"+sess.ID+"/pans", params))

		require.Equal(t, http.StatusBadGateway, w.Code)
		var resp response.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Retry)
	})
}
