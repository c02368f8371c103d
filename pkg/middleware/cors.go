package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// DefaultOrigin is the dashboard dev server, allowed when no origins are configured
const DefaultOrigin = "http://localhost:5173"

// CORS lets the dashboard call the API from allowedOrigins. The API is
// read-only apart from login, logout and the admin actions, all POSTs, and
// authenticates with a bearer token rather than cookies.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{DefaultOrigin}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})

	return c.Handler
}
