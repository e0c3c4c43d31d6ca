// Package api is the local HTTP bridge the desktop UI talks to: agent
// operations as JSON endpoints, the UI event stream as server-sent events.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PriNova/graphone/internal/auth"
)

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single admin bearer token.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// MaxBodyBytes caps request bodies; prompts carry inline images.
	MaxBodyBytes int64
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	agent     AgentBackend
	settings  SettingsStore
	events    EventSource
	metrics   http.Handler
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. A nil metrics handler disables /metrics.
func New(config Config, backend AgentBackend, settings SettingsStore, events EventSource, metrics http.Handler, logger *slog.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 32 << 20
	}
	return &Server{
		config:    config,
		agent:     backend,
		settings:  settings,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: /events streams for the life of the UI.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		if s.metrics != nil {
			r.With(s.requireScopes(auth.ScopeMetricsRead)).Handle("/metrics", s.metrics)
		}
		r.With(s.requireScopes(auth.ScopeEventsRead)).Get("/events", s.handleEvents)

		r.Route("/agent", func(r chi.Router) {
			r.With(s.requireScopes(auth.ScopeAgentRead)).Get("/", s.handleAgentStatus)
			r.With(s.requireScopes(auth.ScopeAgentWrite)).Post("/start", s.handleAgentStart)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(s.requireScopes(auth.ScopeAgentRead)).Get("/", s.handleListSessions)
			r.With(s.requireScopes(auth.ScopeAgentRead)).Get("/cached", s.handleCachedSessions)
			r.With(s.requireScopes(auth.ScopeAgentWrite)).Post("/", s.handleCreateSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.requireScopes(auth.ScopeAgentRead))
					r.Get("/messages", s.sessionCall(s.agent.GetMessages))
					r.Get("/state", s.sessionCall(s.agent.GetState))
					r.Get("/models", s.sessionCall(s.agent.GetAvailableModels))
					r.Get("/oauth/providers", s.sessionCall(s.agent.OAuthProviders))
				})
				r.Group(func(r chi.Router) {
					r.Use(s.requireScopes(auth.ScopeAgentWrite))
					r.Delete("/", s.sessionCall(s.agent.CloseSession))
					r.Post("/prompt", s.handlePrompt)
					r.Post("/abort", s.handleAbort)
					r.Post("/new", s.sessionCall(s.agent.NewSession))
					r.Put("/model", s.handleSetModel)
					r.Post("/model/cycle", s.sessionCall(s.agent.CycleModel))
					r.Put("/thinking", s.handleSetThinkingLevel)
					r.Post("/oauth/login", s.handleOAuthStartLogin)
					r.Get("/oauth/login", s.sessionCall(s.agent.OAuthPollLogin))
					r.Post("/oauth/login/input", s.handleOAuthSubmitInput)
					r.Delete("/oauth/login", s.sessionCall(s.agent.OAuthCancelLogin))
					r.Post("/oauth/logout", s.handleOAuthLogout)
				})
			})
		})

		r.Route("/settings/enabled-models", func(r chi.Router) {
			r.With(s.requireScopes(auth.ScopeSettingsRO)).Get("/", s.handleGetEnabledModels)
			r.With(s.requireScopes(auth.ScopeSettingsRW)).Put("/", s.handleSetEnabledModels)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
