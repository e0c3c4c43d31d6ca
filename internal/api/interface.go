package api

import (
	"context"

	"github.com/PriNova/graphone/internal/agent"
	"github.com/PriNova/graphone/internal/events"
	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/settings"
	"github.com/PriNova/graphone/internal/sidecar"
	"github.com/PriNova/graphone/internal/state"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/PriNova/graphone/internal/api AgentBackend

// AgentBackend is the agent operation surface the bridge exposes.
// *agent.Service implements it.
type AgentBackend interface {
	Running() bool
	PID() int
	EnsureStarted(ctx context.Context, opts sidecar.StartOptions) error

	CreateSession(ctx context.Context, req agent.CreateSessionRequest) (*protocol.Response, error)
	ListSessions(ctx context.Context) (*protocol.Response, error)
	CachedSessions() []state.SessionInfo
	CloseSession(ctx context.Context, sessionID string) (*protocol.Response, error)

	SendPrompt(ctx context.Context, sessionID, text string, images []protocol.ImageAttachment) error
	Abort(ctx context.Context, sessionID string) error
	NewSession(ctx context.Context, sessionID string) (*protocol.Response, error)
	GetMessages(ctx context.Context, sessionID string) (*protocol.Response, error)
	GetState(ctx context.Context, sessionID string) (*protocol.Response, error)

	GetAvailableModels(ctx context.Context, sessionID string) (*protocol.Response, error)
	SetModel(ctx context.Context, sessionID, provider, modelID string) (*protocol.Response, error)
	CycleModel(ctx context.Context, sessionID string) (*protocol.Response, error)
	SetThinkingLevel(ctx context.Context, sessionID, level string) (*protocol.Response, error)

	OAuthProviders(ctx context.Context, sessionID string) (*protocol.Response, error)
	OAuthStartLogin(ctx context.Context, sessionID, provider string) (*protocol.Response, error)
	OAuthPollLogin(ctx context.Context, sessionID string) (*protocol.Response, error)
	OAuthSubmitLoginInput(ctx context.Context, sessionID, input string) (*protocol.Response, error)
	OAuthCancelLogin(ctx context.Context, sessionID string) (*protocol.Response, error)
	OAuthLogout(ctx context.Context, sessionID, provider string) (*protocol.Response, error)
}

// SettingsStore reads and writes the enabledModels setting.
// *settings.Store implements it.
type SettingsStore interface {
	Get(projectDir string) settings.EnabledModels
	Set(patterns []string, scope, projectDir string) (settings.EnabledModels, error)
}

// EventSource is the UI event bus. *events.Hub implements it.
type EventSource interface {
	Subscribe() (<-chan events.Event, func())
	SnapshotSince(lastID int64) []events.Event
	Subscribers() int
}
