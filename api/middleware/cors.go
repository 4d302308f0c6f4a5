package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
)

// TokenHeader mirrors the access token on auth responses so browser clients can read it.
const TokenHeader = "X-FL-Token"

// CORS returns middleware that applies the configured allowed origin policy.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 300
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TokenHeader, IdempotencyHeader, responses.RequestIDHeader, "X-Requested-With"},
		ExposedHeaders:   []string{TokenHeader, responses.RequestIDHeader, "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           maxAge,
	}).Handler
}
