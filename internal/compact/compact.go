// Package compact shrinks worker session events before they reach the UI
// and coalesces high-frequency streaming deltas.
package compact

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// MaxToolResultChars caps string results of tool_execution_end.
const MaxToolResultChars = 24_000

// DefaultMaxPayloadBytes caps a serialized agent-event payload.
const DefaultMaxPayloadBytes = 60_000

// ErrOversized is returned by Payload when the envelope exceeds its cap.
var ErrOversized = errors.New("ui payload too large")

// Session event types with dedicated handling.
const (
	EventAgentStart          = "agent_start"
	EventAgentEnd            = "agent_end"
	EventTurnStart           = "turn_start"
	EventTurnEnd             = "turn_end"
	EventMessageUpdate       = "message_update"
	EventMessageEnd          = "message_end"
	EventToolExecutionStart  = "tool_execution_start"
	EventToolExecutionUpdate = "tool_execution_update"
	EventToolExecutionEnd    = "tool_execution_end"
)

// Assistant message event types.
const (
	AssistantTextDelta     = "text_delta"
	AssistantThinkingDelta = "thinking_delta"
	AssistantToolCallStart = "toolcall_start"
	AssistantToolCallDelta = "toolcall_delta"
)

// Event returns the compacted form of one session event object.
func Event(raw []byte) []byte {
	ev := gjson.ParseBytes(raw)
	typ := ev.Get("type")
	if typ.Type != gjson.String {
		return Bound(raw)
	}

	switch typ.Str {
	case EventAgentStart, EventAgentEnd, EventTurnStart, EventTurnEnd:
		o := newObject()
		o.str("type", typ.Str)
		return o.bytes()
	case EventMessageUpdate:
		return messageUpdate(ev)
	case EventMessageEnd:
		return messageEnd(ev)
	case EventToolExecutionStart:
		o := newObject()
		o.str("type", typ.Str)
		o.str("toolCallId", stringOr(ev.Get("toolCallId"), ""))
		o.str("toolName", stringOr(ev.Get("toolName"), ""))
		o.raw("args", boundedOr(ev.Get("args"), "{}"))
		return o.bytes()
	case EventToolExecutionUpdate:
		o := newObject()
		o.str("type", typ.Str)
		o.str("toolCallId", stringOr(ev.Get("toolCallId"), ""))
		o.str("toolName", stringOr(ev.Get("toolName"), ""))
		return o.bytes()
	case EventToolExecutionEnd:
		return toolExecutionEnd(ev)
	default:
		return Bound(raw)
	}
}

func messageUpdate(ev gjson.Result) []byte {
	msg := newObject()
	msg.str("role", stringOr(ev.Get("message.role"), "assistant"))

	o := newObject()
	o.str("type", EventMessageUpdate)
	o.raw("message", msg.bytes())

	ame := ev.Get("assistantMessageEvent")
	switch {
	case ame.IsObject():
		o.raw("assistantMessageEvent", assistantEvent(ame))
	case ame.Exists():
		o.raw("assistantMessageEvent", BoundResult(ame, 1))
	default:
		o.raw("assistantMessageEvent", []byte("{}"))
	}
	return o.bytes()
}

func assistantEvent(ame gjson.Result) []byte {
	typ := stringOr(ame.Get("type"), "")

	if typ == AssistantTextDelta || typ == AssistantThinkingDelta {
		o := newObject()
		for _, k := range []string{"type", "contentIndex", "delta"} {
			if v := ame.Get(k); v.Exists() {
				o.raw(k, []byte(v.Raw))
			}
		}
		return o.bytes()
	}

	// The accumulated partial message is dropped; the UI rebuilds content
	// from deltas. A tool call only present inside it is lifted out first.
	var toolCall []byte
	inline := ame.Get("toolCall")
	if inline.Exists() {
		toolCall = compactToolCall(inline)
	} else if typ == AssistantToolCallStart || typ == AssistantToolCallDelta {
		toolCall = toolCallFromPartial(ame)
	}

	o := newObject()
	ame.ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "partial":
		case "toolCall":
			o.raw("toolCall", toolCall)
		default:
			o.raw(key.Str, BoundResult(value, 1))
		}
		return true
	})
	if !inline.Exists() && toolCall != nil {
		o.raw("toolCall", toolCall)
	}
	return o.bytes()
}

func toolCallFromPartial(ame gjson.Result) []byte {
	idx, ok := nonNegativeInt(ame.Get("contentIndex"))
	if !ok {
		return nil
	}
	content := ame.Get("partial.content")
	if !content.IsArray() {
		return nil
	}
	items := content.Array()
	if idx >= int64(len(items)) {
		return nil
	}
	entry := items[idx]
	if stringOr(entry.Get("type"), "") != "toolCall" {
		return nil
	}
	return compactToolCall(entry)
}

func compactToolCall(v gjson.Result) []byte {
	o := newObject()
	o.str("type", "toolCall")
	o.str("id", stringOr(v.Get("id"), ""))
	o.str("name", stringOr(v.Get("name"), ""))
	o.raw("arguments", boundedOr(v.Get("arguments"), "{}"))
	return o.bytes()
}

func toolExecutionEnd(ev gjson.Result) []byte {
	o := newObject()
	o.str("type", EventToolExecutionEnd)
	o.str("toolCallId", stringOr(ev.Get("toolCallId"), ""))
	o.str("toolName", stringOr(ev.Get("toolName"), ""))

	isError := ev.Get("isError")
	o.raw("isError", []byte(fmt.Sprint(isError.IsBool() && isError.Bool())))

	result := ev.Get("result")
	switch {
	case result.Type == gjson.String:
		o.raw("result", gjson.AppendJSONString(nil, Truncate(result.Str, MaxToolResultChars)))
	case result.Exists():
		o.raw("result", BoundResult(result, 0))
	default:
		o.raw("result", []byte("null"))
	}
	return o.bytes()
}

func messageEnd(ev gjson.Result) []byte {
	message := ev.Get("message")
	msg := newObject()
	msg.str("role", stringOr(message.Get("role"), "assistant"))
	if v := message.Get("stopReason"); v.Type == gjson.String {
		msg.str("stopReason", v.Str)
	}
	if v := message.Get("errorMessage"); v.Type == gjson.String {
		msg.str("errorMessage", v.Str)
	}

	o := newObject()
	o.str("type", EventMessageEnd)
	o.raw("message", msg.bytes())
	return o.bytes()
}

// Payload wraps a compacted event in the agent-event envelope and enforces
// the size cap. Oversized payloads are rejected whole.
func Payload(sessionID string, event []byte, max int) ([]byte, error) {
	o := newObject()
	o.str("sessionId", sessionID)
	o.raw("event", event)
	b := o.bytes()
	if max > 0 && len(b) > max {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrOversized, len(b), max)
	}
	return b, nil
}

func stringOr(v gjson.Result, def string) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return def
}

func boundedOr(v gjson.Result, def string) []byte {
	if !v.Exists() {
		return []byte(def)
	}
	return BoundResult(v, 0)
}

// nonNegativeInt accepts JSON integers only; 1.5 or 1e3 are rejected.
func nonNegativeInt(v gjson.Result) (int64, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	for i := 0; i < len(v.Raw); i++ {
		c := v.Raw[i]
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	return v.Int(), true
}

// object appends key/value pairs into a JSON object in insertion order.
type object struct {
	buf []byte
	n   int
}

func newObject() *object {
	return &object{buf: []byte{'{'}}
}

func (o *object) raw(key string, value []byte) {
	if o.n > 0 {
		o.buf = append(o.buf, ',')
	}
	o.buf = gjson.AppendJSONString(o.buf, key)
	o.buf = append(o.buf, ':')
	o.buf = append(o.buf, value...)
	o.n++
}

func (o *object) str(key, value string) {
	o.raw(key, gjson.AppendJSONString(nil, value))
}

func (o *object) bytes() []byte {
	return append(o.buf, '}')
}
