package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PriNova/graphone/internal/agent"
	"github.com/PriNova/graphone/internal/broker"
	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/settings"
	"github.com/PriNova/graphone/internal/sidecar"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		WorkerRunning: s.agent.Running(),
		Subscribers:   s.events.Subscribers(),
	})
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, AgentStatusResponse{Running: s.agent.Running(), PID: s.agent.PID()})
}

// handleAgentStart handles POST /agent/start. It is a no-op when the worker
// is already running.
func (s *Server) handleAgentStart(w http.ResponseWriter, r *http.Request) {
	var opts sidecar.StartOptions
	if !s.decodeBody(w, r, &opts) {
		return
	}
	if err := s.agent.EnsureStarted(r.Context(), opts); err != nil {
		s.writeAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, AgentStatusResponse{Running: s.agent.Running(), PID: s.agent.PID()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req agent.CreateSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.agent.CreateSession(r.Context(), req)
	s.respondWorker(w, resp, err)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.agent.ListSessions(r.Context())
	s.respondWorker(w, resp, err)
}

func (s *Server) handleCachedSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CachedSessionsResponse{Sessions: s.agent.CachedSessions()})
}

// handlePrompt handles POST /sessions/{sessionID}/prompt. The prompt is
// queued; its progress arrives on /events.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.agent.SendPrompt(r.Context(), sessionID, req.Message, req.Images); err != nil {
		s.writeAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", SessionID: sessionID})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.agent.Abort(r.Context(), sessionID); err != nil {
		s.writeAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", SessionID: sessionID})
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req SetModelRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.agent.SetModel(r.Context(), chi.URLParam(r, "sessionID"), req.Provider, req.ModelID)
	s.respondWorker(w, resp, err)
}

func (s *Server) handleSetThinkingLevel(w http.ResponseWriter, r *http.Request) {
	var req ThinkingLevelRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.agent.SetThinkingLevel(r.Context(), chi.URLParam(r, "sessionID"), req.Level)
	s.respondWorker(w, resp, err)
}

func (s *Server) handleOAuthStartLogin(w http.ResponseWriter, r *http.Request) {
	var req OAuthProviderRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.agent.OAuthStartLogin(r.Context(), chi.URLParam(r, "sessionID"), req.Provider)
	s.respondWorker(w, resp, err)
}

func (s *Server) handleOAuthSubmitInput(w http.ResponseWriter, r *http.Request) {
	var req OAuthInputRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.agent.OAuthSubmitLoginInput(r.Context(), chi.URLParam(r, "sessionID"), req.Input)
	s.respondWorker(w, resp, err)
}

func (s *Server) handleOAuthLogout(w http.ResponseWriter, r *http.Request) {
	var req OAuthProviderRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.agent.OAuthLogout(r.Context(), chi.URLParam(r, "sessionID"), req.Provider)
	s.respondWorker(w, resp, err)
}

// sessionCall adapts a session-scoped agent call that takes no body.
func (s *Server) sessionCall(call func(ctx context.Context, sessionID string) (*protocol.Response, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := call(r.Context(), chi.URLParam(r, "sessionID"))
		s.respondWorker(w, resp, err)
	}
}

func (s *Server) handleGetEnabledModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.settings.Get(r.URL.Query().Get("projectDir")))
}

func (s *Server) handleSetEnabledModels(w http.ResponseWriter, r *http.Request) {
	var req EnabledModelsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	got, err := s.settings.Set(req.Patterns, req.Scope, req.ProjectDir)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidScope) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to write enabled models", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, got)
}

// respondWorker writes the worker's response as-is, including unsuccessful
// ones; only broker failures become HTTP errors.
func (s *Server) respondWorker(w http.ResponseWriter, resp *protocol.Response, err error) {
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("agent call failed", "status", status, "error", err)
	}
	s.writeError(w, status, err.Error())
}

// statusFor maps agent and broker errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrSessionRequired), errors.Is(err, broker.ErrMissingID):
		return http.StatusBadRequest
	case broker.IsTimeout(err):
		return http.StatusGatewayTimeout
	case agent.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, broker.ErrWrite):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body into v. It writes the error
// response and returns false when the body is present but unusable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
