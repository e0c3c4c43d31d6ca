package compact

import (
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultFlushInterval is roughly one display frame.
const DefaultFlushInterval = 16 * time.Millisecond

// Pending is a queued event ready to be emitted.
type Pending struct {
	SessionID string
	Event     []byte
}

type deltaKey struct {
	kind  string
	index string
}

// deltaKeyOf returns the coalescing key of a compacted message_update carrying
// a text or thinking delta with an integer content index.
func deltaKeyOf(event []byte) (deltaKey, bool) {
	r := gjson.GetManyBytes(event, "type", "assistantMessageEvent.type", "assistantMessageEvent.contentIndex")
	if r[0].Str != EventMessageUpdate {
		return deltaKey{}, false
	}
	kind := r[1].Str
	if r[1].Type != gjson.String || (kind != AssistantTextDelta && kind != AssistantThinkingDelta) {
		return deltaKey{}, false
	}
	if !isInteger(r[2]) {
		return deltaKey{}, false
	}
	return deltaKey{kind: kind, index: r[2].Raw}, true
}

func isInteger(v gjson.Result) bool {
	if v.Type != gjson.Number || v.Raw == "" {
		return false
	}
	raw := v.Raw
	if raw[0] == '-' {
		raw = raw[1:]
	}
	if raw == "" {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return false
		}
	}
	return true
}

// Coalescer buffers streaming deltas per session. A delta whose kind and
// content index match the last buffered delta of the same session is
// concatenated onto it, so a burst of tiny deltas reaches the UI as one event.
// A merge that would push the agent-event envelope past maxPayload starts a
// new entry instead, so every delta that fits on its own is still delivered.
// It is not safe for concurrent use; it belongs to the router goroutine.
type Coalescer struct {
	interval   time.Duration
	maxPayload int
	queues     map[string][][]byte
	lastFlush  time.Time
	now        func() time.Time
}

// NewCoalescer returns a Coalescer flushing every interval whose merged
// events stay within maxPayload bytes once wrapped by Payload. Non-positive
// arguments select the defaults.
func NewCoalescer(interval time.Duration, maxPayload int) *Coalescer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadBytes
	}
	c := &Coalescer{
		interval:   interval,
		maxPayload: maxPayload,
		queues:     make(map[string][][]byte),
		now:        time.Now,
	}
	c.lastFlush = c.now()
	return c
}

// Offer queues event if it is a delta. It reports whether the event was
// taken, and whether it was merged into an already queued delta.
func (c *Coalescer) Offer(sessionID string, event []byte) (queued, merged bool) {
	key, ok := deltaKeyOf(event)
	if !ok {
		return false, false
	}
	queue := c.queues[sessionID]
	if n := len(queue); n > 0 {
		if lastKey, ok := deltaKeyOf(queue[n-1]); ok && lastKey == key {
			if next, ok := appendDelta(queue[n-1], event); ok && c.fits(sessionID, next) {
				queue[n-1] = next
				return true, true
			}
		}
	}
	c.queues[sessionID] = append(queue, event)
	return true, false
}

func (c *Coalescer) fits(sessionID string, event []byte) bool {
	_, err := Payload(sessionID, event, c.maxPayload)
	return err == nil
}

func appendDelta(target, source []byte) ([]byte, bool) {
	existing := gjson.GetBytes(target, "assistantMessageEvent.delta").String()
	addition := gjson.GetBytes(source, "assistantMessageEvent.delta").String()
	out, err := sjson.SetBytes(target, "assistantMessageEvent.delta", existing+addition)
	if err != nil {
		return nil, false
	}
	return out, true
}

// FlushSession removes and returns the queued deltas of one session in order.
func (c *Coalescer) FlushSession(sessionID string) [][]byte {
	events, ok := c.queues[sessionID]
	if !ok {
		return nil
	}
	delete(c.queues, sessionID)
	c.lastFlush = c.now()
	return events
}

// FlushDue flushes every session when the flush interval has elapsed since
// the last flush.
func (c *Coalescer) FlushDue() []Pending {
	if len(c.queues) == 0 || c.now().Sub(c.lastFlush) < c.interval {
		return nil
	}
	return c.FlushAll()
}

// FlushAll flushes every session. Sessions are returned in id order; events
// within a session keep their arrival order.
func (c *Coalescer) FlushAll() []Pending {
	if len(c.queues) == 0 {
		return nil
	}
	ids := make([]string, 0, len(c.queues))
	for id := range c.queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Pending
	for _, id := range ids {
		for _, ev := range c.queues[id] {
			out = append(out, Pending{SessionID: id, Event: ev})
		}
	}
	c.queues = make(map[string][][]byte)
	c.lastFlush = c.now()
	return out
}

// Len returns the number of queued events across all sessions.
func (c *Coalescer) Len() int {
	n := 0
	for _, q := range c.queues {
		n += len(q)
	}
	return n
}
