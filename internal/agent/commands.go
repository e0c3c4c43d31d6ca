package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/sidecar"
	"github.com/PriNova/graphone/internal/state"
)

// ErrSessionRequired is returned for session-scoped calls with a blank id.
var ErrSessionRequired = errors.New("sessionId is required")

// CreateSessionRequest describes a new worker session.
type CreateSessionRequest struct {
	Cwd         string `json:"cwd"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	SessionFile string `json:"sessionFile,omitempty"`
}

func requireSession(sessionID, command string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return "", fmt.Errorf("%w for %s", ErrSessionRequired, command)
	}
	return id, nil
}

// request sends a command with a fresh request id and the default timeout.
func (s *Service) request(ctx context.Context, cmd protocol.Command) (*protocol.Response, error) {
	cmd.ID = uuid.NewString()
	return s.broker.SendWithResponse(ctx, &cmd, s.timeout())
}

// sessionRequest is request for commands that only carry a session id.
func (s *Service) sessionRequest(ctx context.Context, typ, sessionID string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, typ)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, protocol.Command{Type: typ, SessionID: id})
}

// CreateSession starts the worker if needed and asks it for a new session.
// The session id is chosen here and reused across timeout retries, so a
// create that succeeded late on the worker side is not duplicated.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*protocol.Response, error) {
	opts := sidecar.StartOptions{Provider: req.Provider, Model: req.Model}
	if err := s.EnsureStarted(ctx, opts); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	cmd := &protocol.Command{
		Type:        protocol.CmdCreateSession,
		SessionID:   sessionID,
		Cwd:         req.Cwd,
		Provider:    strings.TrimSpace(req.Provider),
		ModelID:     strings.TrimSpace(req.Model),
		SessionFile: req.SessionFile,
	}
	resp, err := s.broker.RetryOnTimeout(ctx, s.createPolicy(), cmd)
	if err != nil {
		s.logger.Error("create_session failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	if resp.Success {
		id := gjson.GetBytes(resp.Data, "sessionId")
		cwd := gjson.GetBytes(resp.Data, "cwd")
		if id.Type == gjson.String && cwd.Type == gjson.String {
			s.store.CacheSession(id.Str, cwd.Str)
		}
	}
	return resp, nil
}

// SendPrompt queues a prompt without waiting for the reply; progress arrives
// as session events. Unusable image attachments are dropped.
func (s *Service) SendPrompt(ctx context.Context, sessionID, text string, images []protocol.ImageAttachment) error {
	id, err := requireSession(sessionID, protocol.CmdPrompt)
	if err != nil {
		return err
	}
	return s.broker.Send(ctx, &protocol.Command{
		ID:        uuid.NewString(),
		Type:      protocol.CmdPrompt,
		SessionID: id,
		Message:   text,
		Images:    protocol.FilterImages(images),
	})
}

// Abort asks the worker to stop the session's current operation.
func (s *Service) Abort(ctx context.Context, sessionID string) error {
	id, err := requireSession(sessionID, protocol.CmdAbort)
	if err != nil {
		return err
	}
	return s.broker.Send(ctx, &protocol.Command{ID: uuid.NewString(), Type: protocol.CmdAbort, SessionID: id})
}

// ListSessions returns the worker's sessions and refreshes the cache. Without
// a worker it answers an empty list instead of starting one.
func (s *Service) ListSessions(ctx context.Context) (*protocol.Response, error) {
	if !s.store.HasChild() {
		return &protocol.Response{
			Type:    protocol.TypeResponse,
			Command: protocol.CmdListSessions,
			Success: true,
			Data:    json.RawMessage(`{"sessions":[]}`),
		}, nil
	}
	resp, err := s.request(ctx, protocol.Command{Type: protocol.CmdListSessions})
	if err != nil {
		return nil, err
	}
	if resp.Success {
		if list := gjson.GetBytes(resp.Data, "sessions"); list.IsArray() {
			var sessions []state.SessionInfo
			for _, item := range list.Array() {
				id, cwd := item.Get("sessionId"), item.Get("cwd")
				if id.Type != gjson.String || cwd.Type != gjson.String {
					continue
				}
				sessions = append(sessions, state.SessionInfo{SessionID: id.Str, Cwd: cwd.Str})
			}
			s.store.ReplaceSessions(sessions)
		}
	}
	return resp, nil
}

// CloseSession closes a session and evicts it from the cache on success.
func (s *Service) CloseSession(ctx context.Context, sessionID string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, protocol.CmdCloseSession)
	if err != nil {
		return nil, err
	}
	resp, err := s.request(ctx, protocol.Command{Type: protocol.CmdCloseSession, SessionID: id})
	if err != nil {
		return nil, err
	}
	if resp.Success {
		if cwd, ok := s.store.SessionCwd(id); ok {
			s.logger.Info("session closed", "session_id", id, "cwd", cwd)
		}
		s.store.ForgetSession(id)
	}
	return resp, nil
}

// CachedSessions returns the advisory session cache.
func (s *Service) CachedSessions() []state.SessionInfo {
	return s.store.Sessions()
}

func (s *Service) NewSession(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdNewSession, sessionID)
}

func (s *Service) GetMessages(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdGetMessages, sessionID)
}

func (s *Service) GetState(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdGetState, sessionID)
}

// GetAvailableModels lists the models usable with the configured auth,
// reduced to the fields the UI reads.
func (s *Service) GetAvailableModels(ctx context.Context, sessionID string) (*protocol.Response, error) {
	resp, err := s.sessionRequest(ctx, protocol.CmdGetAvailableModels, sessionID)
	if err != nil {
		return nil, err
	}
	if resp.Success && resp.Data != nil {
		resp.Data = compactModels(resp.Data)
	}
	return resp, nil
}

func (s *Service) SetModel(ctx context.Context, sessionID, provider, modelID string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, protocol.CmdSetModel)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, protocol.Command{Type: protocol.CmdSetModel, SessionID: id, Provider: provider, ModelID: modelID})
}

func (s *Service) CycleModel(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdCycleModel, sessionID)
}

func (s *Service) SetThinkingLevel(ctx context.Context, sessionID, level string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, protocol.CmdSetThinkingLevel)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, protocol.Command{Type: protocol.CmdSetThinkingLevel, SessionID: id, Level: level})
}

func (s *Service) OAuthProviders(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdOAuthListProviders, sessionID)
}

func (s *Service) OAuthStartLogin(ctx context.Context, sessionID, provider string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, protocol.CmdOAuthStartLogin)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, protocol.Command{Type: protocol.CmdOAuthStartLogin, SessionID: id, Provider: provider})
}

func (s *Service) OAuthPollLogin(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdOAuthPollLogin, sessionID)
}

// OAuthSubmitLoginInput forwards what the user typed for the current login step.
func (s *Service) OAuthSubmitLoginInput(ctx context.Context, sessionID, input string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, protocol.CmdOAuthSubmitLoginInput)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, protocol.Command{Type: protocol.CmdOAuthSubmitLoginInput, SessionID: id, Message: input})
}

func (s *Service) OAuthCancelLogin(ctx context.Context, sessionID string) (*protocol.Response, error) {
	return s.sessionRequest(ctx, protocol.CmdOAuthCancelLogin, sessionID)
}

func (s *Service) OAuthLogout(ctx context.Context, sessionID, provider string) (*protocol.Response, error) {
	id, err := requireSession(sessionID, protocol.CmdOAuthLogout)
	if err != nil {
		return nil, err
	}
	return s.request(ctx, protocol.Command{Type: protocol.CmdOAuthLogout, SessionID: id, Provider: provider})
}
