package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medintake/intake-ai-platform/internal/appointments"
	"github.com/medintake/intake-ai-platform/internal/bots"
	"github.com/medintake/intake-ai-platform/internal/calllifecycle"
	"github.com/medintake/intake-ai-platform/internal/calls"
	httpmiddleware "github.com/medintake/intake-ai-platform/internal/http/middleware"
	"github.com/medintake/intake-ai-platform/internal/patients"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	PatientsHandler     *patients.Handler
	AppointmentsHandler *appointments.Handler
	BotsHandler         *bots.Handler
	CallsHandler        *calls.Handler
	WebhookHandler      *calllifecycle.Handler

	// WebhookSecret authenticates inbound provider webhooks.
	WebhookSecret string

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Provider webhooks. Signature verification sits in front of all three.
	if cfg.WebhookHandler != nil {
		r.Route("/api/webhooks", func(hooks chi.Router) {
			hooks.Use(httpmiddleware.VerifyWebhookSignature(cfg.WebhookSecret, cfg.Logger))
			hooks.Post("/pre-call", cfg.WebhookHandler.PreCall)
			hooks.Post("/in-call", cfg.WebhookHandler.FunctionCall)
			hooks.Post("/post-call", cfg.WebhookHandler.PostCall)
		})
	}

	// Dashboard CRUD
	r.Route("/api", func(api chi.Router) {
		if cfg.PatientsHandler != nil {
			api.Route("/patients", func(r chi.Router) {
				r.Get("/", cfg.PatientsHandler.List)
				r.Post("/", cfg.PatientsHandler.Create)
				r.Get("/{medicalId}", cfg.PatientsHandler.Get)
				r.Put("/{medicalId}", cfg.PatientsHandler.Update)
				r.Delete("/{medicalId}", cfg.PatientsHandler.Delete)
			})
		}
		if cfg.AppointmentsHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Post("/", cfg.AppointmentsHandler.Create)
				r.Get("/{id}", cfg.AppointmentsHandler.Get)
				r.Patch("/{id}", cfg.AppointmentsHandler.UpdateOutcome)
				r.Delete("/{id}", cfg.AppointmentsHandler.Delete)
			})
		}
		if cfg.BotsHandler != nil {
			api.Route("/bots", func(r chi.Router) {
				r.Get("/", cfg.BotsHandler.List)
				r.Post("/", cfg.BotsHandler.Create)
				r.Get("/{id}", cfg.BotsHandler.Get)
				r.Patch("/{id}", cfg.BotsHandler.Update)
				r.Delete("/{id}", cfg.BotsHandler.Delete)
			})
		}
		if cfg.CallsHandler != nil {
			api.Route("/calls", func(r chi.Router) {
				r.Get("/", cfg.CallsHandler.List)
				r.Post("/", cfg.CallsHandler.Initiate)
				r.Get("/{callId}", cfg.CallsHandler.Get)
			})
		}
	})

	return r
}
