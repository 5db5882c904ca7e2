package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS allows the configured origins to call the API with the role and
// investor headers. Credentials are not allowed: callers authenticate with
// X-API-Key, never with cookies.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", APIKeyHeader, InvestorAddressHeader},
		ExposedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	})
}
