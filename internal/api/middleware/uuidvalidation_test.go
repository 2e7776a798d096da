package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-dashboard/internal/api/middleware"
	"github.com/ndewijer/portfolio-dashboard/internal/api/response"
	"github.com/ndewijer/portfolio-dashboard/internal/testutil"
)

func TestValidateUUIDMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantCalled bool
		wantStatus int
	}{
		{"passes through valid session id", "550e8400-e29b-41d4-a716-446655440000", true, http.StatusOK},
		{"returns 400 for invalid id", "invalid-id", false, http.StatusBadRequest},
		{"returns 400 for empty id", "", false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/sessions/x", map[string]string{"uuid": tt.id})
			w := httptest.NewRecorder()
			middleware.ValidateUUIDMiddleware(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, w.Code)
			if !tt.wantCalled {
				var body response.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}
