package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/PriNova/graphone/internal/protocol"
)

// fakeWorkerEnv makes the test binary act as the worker when re-executed.
const fakeWorkerEnv = "GRAPHONE_FAKE_WORKER"

// Worker modes.
const (
	modeNormal          = "normal"
	modeSilent          = "silent"
	modeDropFirstCreate = "drop-first-create"
	modeCrashOnMessages = "crash-on-messages"
)

// runFakeWorker speaks the worker protocol on stdin/stdout.
func runFakeWorker(mode string) int {
	stdout := bufio.NewWriter(os.Stdout)
	write := func(v any) {
		b, _ := json.Marshal(v)
		stdout.Write(b)
		stdout.WriteByte('\n')
		stdout.Flush()
	}
	respond := func(cmd protocol.Command, success bool, data any, errMsg string) {
		msg := map[string]any{"type": "response", "id": cmd.ID, "command": cmd.Type, "success": success}
		if data != nil {
			msg["data"] = data
		}
		if errMsg != "" {
			msg["error"] = errMsg
		}
		write(msg)
	}
	event := func(sessionID string, ev map[string]any) {
		write(map[string]any{"type": "session_event", "sessionId": sessionID, "event": ev})
	}
	delta := func(sessionID, text string) {
		event(sessionID, map[string]any{
			"type":    "message_update",
			"message": map[string]any{"role": "assistant"},
			"assistantMessageEvent": map[string]any{
				"type": "text_delta", "contentIndex": 0, "delta": text,
				"partial": map[string]any{"content": []any{map[string]any{"type": "text", "text": "..."}}},
			},
		})
	}

	fmt.Fprintln(os.Stderr, "fake worker starting")
	fmt.Fprintln(os.Stdout, "booting...")

	firstCreateID := ""
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 64*1024), 4<<20)
	for in.Scan() {
		var cmd protocol.Command
		if err := json.Unmarshal(in.Bytes(), &cmd); err != nil {
			fmt.Fprintln(os.Stderr, "bad command:", err)
			continue
		}
		if mode == modeSilent {
			continue
		}

		switch cmd.Type {
		case protocol.CmdPing:
			respond(cmd, true, nil, "")
		case protocol.CmdCreateSession:
			if mode == modeDropFirstCreate && firstCreateID == "" {
				firstCreateID = cmd.SessionID
				continue
			}
			respond(cmd, true, map[string]any{
				"sessionId":           cmd.SessionID,
				"cwd":                 cmd.Cwd,
				"firstAttemptSession": firstCreateID,
			}, "")
		case protocol.CmdListSessions:
			respond(cmd, true, map[string]any{"sessions": []any{
				map[string]any{"sessionId": "a", "cwd": "/a"},
				map[string]any{"sessionId": "b", "cwd": "/b"},
				map[string]any{"cwd": "/no-id"},
			}}, "")
		case protocol.CmdCloseSession:
			if cmd.SessionID == "missing" {
				respond(cmd, false, nil, "session not found")
				continue
			}
			respond(cmd, true, nil, "")
		case protocol.CmdPrompt:
			event(cmd.SessionID, map[string]any{"type": "agent_start"})
			event(cmd.SessionID, map[string]any{
				"type": "prompt_received", "message": cmd.Message, "images": len(cmd.Images),
			})
			delta(cmd.SessionID, "He")
			delta(cmd.SessionID, "llo")
			event(cmd.SessionID, map[string]any{
				"type":    "message_end",
				"message": map[string]any{"role": "assistant", "stopReason": "stop", "content": []any{"Hello"}},
			})
			event(cmd.SessionID, map[string]any{"type": "agent_end"})
		case protocol.CmdGetAvailableModels:
			respond(cmd, true, map[string]any{"models": []any{
				map[string]any{"provider": "anthropic", "id": "claude", "name": "Claude", "contextWindow": 200000, "supportsImageInput": true},
				map[string]any{"provider": "openai", "id": "gpt"},
				map[string]any{"id": "orphan"},
			}}, "")
		case protocol.CmdGetMessages:
			if mode == modeCrashOnMessages {
				os.Exit(3)
			}
			respond(cmd, true, map[string]any{"messages": []any{}}, "")
		default:
			respond(cmd, true, map[string]any{
				"echo":      cmd.Type,
				"sessionId": cmd.SessionID,
				"provider":  cmd.Provider,
				"modelId":   cmd.ModelID,
				"level":     cmd.Level,
				"message":   cmd.Message,
				"args":      os.Args[1:],
			}, "")
		}
	}
	return 0
}
