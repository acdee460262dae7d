/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from X-Forwarded-For (rate limit key)
  3. Logger:     Structured request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests from the wizard frontend

ROUTE GROUPS:
  /api/quotes       Price preview
  /api/iban/*       IBAN check
  /api/contracts/*  Submission and lookup (POST is rate limited)
  /api/admin/*      Delivery retry
  /api/health       Liveness

SECURITY NOTE:
  No authentication middleware. Submissions are only protected by the
  per-IP rate limit.

SEE ALSO:
  - handlers.go: Handler implementations
  - ratelimit.go: Submission rate limit middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aircare/contract-engine/logger"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/quotes", h.CreateQuote)

		r.Route("/iban", func(r chi.Router) {
			r.Post("/check", h.CheckIBAN)
		})

		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.With(RateLimit(h.Limiter, SubmitRateKey, h.log)).Post("/", h.SubmitContract)
			r.Get("/{id}", h.GetContract)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/sync", h.GetSyncStatus)
			r.Post("/sync", h.TriggerSync)
		})
	})

	return r
}

// requestLogger logs one line per request with the zap logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Infow("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"remote", r.RemoteAddr,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
