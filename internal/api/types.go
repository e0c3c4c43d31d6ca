package api

import (
	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/state"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WorkerRunning bool   `json:"worker_running"`
	Subscribers   int    `json:"subscribers"`
}

// AgentStatusResponse is returned by GET /agent and POST /agent/start.
type AgentStatusResponse struct {
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

// AcceptedResponse acknowledges a fire-and-forget command.
type AcceptedResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
}

// CachedSessionsResponse is returned by GET /sessions/cached.
type CachedSessionsResponse struct {
	Sessions []state.SessionInfo `json:"sessions"`
}

// PromptRequest is the JSON body for POST /sessions/{id}/prompt.
type PromptRequest struct {
	Message string                     `json:"message"`
	Images  []protocol.ImageAttachment `json:"images,omitempty"`
}

// SetModelRequest is the JSON body for PUT /sessions/{id}/model.
type SetModelRequest struct {
	Provider string `json:"provider"`
	ModelID  string `json:"modelId"`
}

// ThinkingLevelRequest is the JSON body for PUT /sessions/{id}/thinking.
type ThinkingLevelRequest struct {
	Level string `json:"level"`
}

// OAuthProviderRequest names the provider for login and logout.
type OAuthProviderRequest struct {
	Provider string `json:"provider"`
}

// OAuthInputRequest carries what the user typed for the current login step.
type OAuthInputRequest struct {
	Input string `json:"input"`
}

// EnabledModelsRequest is the JSON body for PUT /settings/enabled-models.
type EnabledModelsRequest struct {
	Patterns   []string `json:"patterns"`
	Scope      string   `json:"scope,omitempty"`
	ProjectDir string   `json:"projectDir,omitempty"`
}
