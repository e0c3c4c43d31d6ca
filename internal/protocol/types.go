package protocol

import (
	"encoding/json"
	"strings"
)

// Envelope type tags found in the "type" field of inbound messages.
const (
	TypeResponse     = "response"
	TypeSessionEvent = "session_event"
)

// Command types understood by the worker.
const (
	CmdPing                  = "ping"
	CmdPrompt                = "prompt"
	CmdAbort                 = "abort"
	CmdNewSession            = "new_session"
	CmdGetMessages           = "get_messages"
	CmdGetState              = "get_state"
	CmdGetAvailableModels    = "get_available_models"
	CmdSetModel              = "set_model"
	CmdCycleModel            = "cycle_model"
	CmdSetThinkingLevel      = "set_thinking_level"
	CmdCreateSession         = "create_session"
	CmdCloseSession          = "close_session"
	CmdListSessions          = "list_sessions"
	CmdOAuthListProviders    = "oauth_list_providers"
	CmdOAuthStartLogin       = "oauth_start_login"
	CmdOAuthPollLogin        = "oauth_poll_login"
	CmdOAuthSubmitLoginInput = "oauth_submit_login_input"
	CmdOAuthCancelLogin      = "oauth_cancel_login"
	CmdOAuthLogout           = "oauth_logout"
)

// Command is an outbound request written to the worker's stdin.
// Commands without an ID are fire-and-forget.
type Command struct {
	ID                string            `json:"id,omitempty"`
	Type              string            `json:"type"`
	SessionID         string            `json:"sessionId,omitempty"`
	Cwd               string            `json:"cwd,omitempty"`
	Message           string            `json:"message,omitempty"`
	Provider          string            `json:"provider,omitempty"`
	ModelID           string            `json:"modelId,omitempty"`
	StreamingBehavior string            `json:"streamingBehavior,omitempty"`
	SessionFile       string            `json:"sessionFile,omitempty"`
	Level             string            `json:"level,omitempty"`
	Images            []ImageAttachment `json:"images,omitempty"`
}

// ImageAttachment is an inline image sent along with a prompt.
type ImageAttachment struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// Valid reports whether the attachment is an image the worker accepts.
func (a ImageAttachment) Valid() bool {
	return a.Type == "image" &&
		strings.TrimSpace(a.Data) != "" &&
		strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.MimeType)), "image/")
}

// FilterImages drops attachments that are not usable images.
func FilterImages(in []ImageAttachment) []ImageAttachment {
	var out []ImageAttachment
	for _, img := range in {
		if img.Valid() {
			out = append(out, img)
		}
	}
	return out
}

// Response is the worker's reply to a Command carrying an ID.
type Response struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Command string          `json:"command"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SessionEvent is an asynchronous event emitted by the worker for one session.
type SessionEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Event     json.RawMessage `json:"event"`
}
