package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// MarshalCommand serializes a Command into a single newline-terminated line.
func MarshalCommand(cmd *Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("command is nil")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return nil, fmt.Errorf("command missing required field: type")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return buf.Bytes(), nil
}

// Kind returns the envelope "type" of a raw JSON object, or "" when absent.
func Kind(data []byte) string {
	v := gjson.GetBytes(data, "type")
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

type wireResponse struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Command *string         `json:"command"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// DecodeResponse parses a response envelope and validates its required fields.
// Unknown fields are ignored.
func DecodeResponse(data []byte) (*Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if w.Type != TypeResponse {
		return nil, fmt.Errorf("invalid type value: %q (must be %q)", w.Type, TypeResponse)
	}
	if w.Command == nil || *w.Command == "" {
		return nil, fmt.Errorf("response missing required field: command")
	}
	if w.Success == nil {
		return nil, fmt.Errorf("response missing required field: success")
	}

	resp := &Response{
		ID:      w.ID,
		Type:    w.Type,
		Command: *w.Command,
		Success: *w.Success,
		Error:   w.Error,
	}
	if len(w.Data) > 0 && !bytes.Equal(bytes.TrimSpace(w.Data), []byte("null")) {
		resp.Data = w.Data
	}
	return resp, nil
}

// DecodeSessionEvent parses a session_event envelope. The event body must be
// a JSON object and the session id must be non-empty.
func DecodeSessionEvent(data []byte) (*SessionEvent, error) {
	var ev SessionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode session event: %w", err)
	}
	if ev.Type != TypeSessionEvent {
		return nil, fmt.Errorf("invalid type value: %q (must be %q)", ev.Type, TypeSessionEvent)
	}
	if strings.TrimSpace(ev.SessionID) == "" {
		return nil, fmt.Errorf("session event missing required field: sessionId")
	}
	if !gjson.ParseBytes(ev.Event).IsObject() {
		return nil, fmt.Errorf("session event field event must be an object")
	}
	return &ev, nil
}

// ClaimedCommand extracts the "command" field of a raw envelope for logging.
func ClaimedCommand(data []byte) string {
	return gjson.GetBytes(data, "command").String()
}
