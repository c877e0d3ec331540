package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/apikey"
	"github.com/flourisha/brain/internal/middleware"
	"github.com/flourisha/brain/internal/port/cache"
)

// RouterConfig carries the cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	CORSOrigin  string

	Authn       middleware.Authenticator
	AuthEnabled bool
	DevClaims   access.Claims

	// RateLimiter is optional.
	RateLimiter *middleware.RateLimiter

	// IdempotencyStore is optional. Without it Idempotency-Key headers are ignored.
	IdempotencyStore cache.Cache
	IdempotencyTTL   time.Duration

	// WebSocket serves /ws when set.
	WebSocket http.HandlerFunc
}

// NewRouter builds the full middleware chain and mounts every route.
func NewRouter(h *Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.CORSOrigin))
	r.Use(chimw.Recoverer)
	if cfg.ServiceName != "" {
		r.Use(cfotel.HTTPMiddleware(cfg.ServiceName))
	}
	r.Use(middleware.Auth(cfg.Authn, cfg.AuthEnabled, cfg.DevClaims))
	r.Use(CaptureClaims)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}
	if cfg.IdempotencyStore != nil {
		r.Use(middleware.Idempotency(cfg.IdempotencyStore, cfg.IdempotencyTTL))
	}

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket)
	}
	MountRoutes(r, h)
	return r
}

// MountRoutes registers the /api/v1 routes on r. Each group requires the matching
// read or write scope from API-key callers.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": "1"})
		})

		// Energy
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(apikey.ScopeEnergyRead))
			r.Get("/energy/readings", h.ListEnergyReadings)
			r.Get("/energy/summary", h.EnergySummary)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(apikey.ScopeEnergyWrite))
			r.Post("/energy/readings", handleCreate(h.Energy.Record, "reading not found"))
			r.Patch("/energy/readings/{id}", handleUpdate(h.Energy.Update, "reading not found"))
		})

		// OKRs and tags
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(apikey.ScopeOKRsRead))
			r.Get("/okrs/key-results", h.ListKeyResults)
			r.Get("/okrs/key-results/{id}", handleGet(h.OKRs.Get, "key result not found"))
			r.Get("/okrs/key-results/{id}/history", handleListByID(h.OKRs.History, "key result not found"))
			r.Get("/okrs/key-results/{id}/tags", handleListByID(h.Tags.ForKeyResult, "key result not found"))
			r.Get("/okrs/progress", h.ObjectiveProgress)
			r.Get("/okrs/at-risk", h.AtRiskKeyResults)
			r.Get("/okrs/overview", h.OKROverview)
			r.Get("/okrs/tags", h.ListTags)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(apikey.ScopeOKRsWrite))
			r.Put("/okrs/key-results", h.UpsertKeyResult)
			r.Post("/okrs/tags", handleCreate(h.Tags.Create, "tag not found"))
			r.Put("/okrs/key-results/{id}/tags/{tagID}", h.AssignTag)
			r.Delete("/okrs/key-results/{id}/tags/{tagID}", h.UnassignTag)
		})

		// Extraction feedback and validation
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(apikey.ScopeExtractionRead))
			r.Get("/extraction/documents/{id}/feedback", handleListByID(h.Extraction.ListFeedback, "document not found"))
			r.Get("/extraction/documents/{id}/results", handleListByID(h.Extraction.ListResults, "document not found"))
			r.Get("/extraction/review-queue", h.ReviewQueue)
			r.Get("/extraction/examples", h.ListExamples)
			r.Get("/extraction/rules", h.ListRules)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(apikey.ScopeExtractionWrite))
			r.Post("/extraction/feedback", handleCreate(h.Extraction.RecordCorrection, "document not found"))
			r.Post("/extraction/feedback/training", h.MarkFeedbackForTraining)
			r.Post("/extraction/validation-results", handleCreate(h.Extraction.RecordValidationResult, "document not found"))
			r.Post("/extraction/documents/{id}/validate", h.RunValidation)
			r.Post("/extraction/examples", handleCreate(h.Extraction.CreateExample, "example not found"))
			r.Post("/extraction/examples/{id}/usage", h.RecordExampleUsage)
			r.Post("/extraction/rules", handleCreate(h.Extraction.CreateRule, "rule not found"))
		})
	})
}
