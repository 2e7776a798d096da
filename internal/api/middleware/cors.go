package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS creates the CORS middleware for the dashboard frontend. Credentials are allowed so the
// browser can send its session cookie; Content-Disposition is exposed for table exports.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Type", "Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
