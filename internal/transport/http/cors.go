package http

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows browser scanners served from allowedOrigins to call the API.
// A "*" entry allows any origin.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", OrganizerHeader},
		MaxAge:         600,
	}).Handler(next)
}
