package server

import (
	"net/http"
	"os"
	"time"

	"github.com/autowar/autowar/api"
	"github.com/autowar/autowar/internal/middleware"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// APIConfig is the configuration struct to build the API handlers
type APIConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Handlers *api.Handlers

	// APIKey guards the credential registration routes. An empty key leaves
	// them open, which is only intended for local mode.
	APIKey string

	// JWT guards the evaluation, score and client routes. A nil authenticator
	// leaves them open, which is only intended for local mode.
	JWT *middleware.JWTAuthenticator

	TracingEnabled bool
}

// API constructs an http.Handler with all application routes defined.
func API(cfg *APIConfig) http.Handler {

	// Construct the App which holds all routes as well as common Middleware.
	app := NewApp(cfg.Shutdown)

	handlers := cfg.Handlers

	// Register health check endpoint. This route is not authenticated.
	app.Get("/api/v1/health", handlers.Health)

	// Main application routes
	app.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.RequestID)
		r.Use(chiMiddleware.RealIP)
		r.Use(middleware.Logger(cfg.Log.Desugar()))
		r.Use(chiMiddleware.Recoverer)
		r.Use(chiMiddleware.Timeout(60 * time.Second))
		if cfg.TracingEnabled {
			r.Use(middleware.Tracing)
		}

		r.Group(func(r chi.Router) {
			if cfg.JWT != nil {
				r.Use(cfg.JWT.Middleware())
			}

			r.Route("/evaluations", func(r chi.Router) {
				r.Post("/", handlers.CreateEvaluation)

				r.Route("/{evaluationID}", func(r chi.Router) {
					r.Get("/", handlers.GetEvaluation)
					r.Get("/evidence", handlers.ListEvidenceForEvaluation)
					r.Get("/report", handlers.GetReport)
					r.Get("/scores", handlers.ListScoresForEvaluation)
				})
			})

			r.Route("/scores", func(r chi.Router) {
				r.Post("/", handlers.CreateScore)
				r.Get("/{scoreID}", handlers.GetScore)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Post("/", handlers.CreateClient)
				r.Get("/", handlers.ListClients)
				r.Get("/{clientID}/evaluations", handlers.ListEvaluationsForClient)
			})
		})

		// credential registration carries key material in request bodies, so
		// it sits behind its own pre-shared key rather than end-user tokens
		r.Group(func(r chi.Router) {
			if cfg.APIKey != "" {
				r.Use(middleware.APIKeyAuth(cfg.APIKey))
			}

			r.Route("/credentials", func(r chi.Router) {
				r.Post("/", handlers.RegisterCredential)
				r.Get("/{credentialID}", handlers.GetCredential)
			})
		})
	})

	return app
}
