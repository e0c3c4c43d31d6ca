package compact

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func delta(kind string, index int, text string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"message_update","message":{"role":"assistant"},"assistantMessageEvent":{"type":%q,"contentIndex":%d,"delta":%q}}`,
		kind, index, text))
}

func deltaText(t *testing.T, event []byte) string {
	t.Helper()
	return gjson.GetBytes(event, "assistantMessageEvent.delta").Str
}

// fakeClock lets tests move time forward explicitly.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCoalescer(interval time.Duration) (*Coalescer, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCoalescer(interval, 0)
	c.now = clock.now
	c.lastFlush = clock.now()
	return c, clock
}

func TestHelloScenario(t *testing.T) {
	c, clock := newTestCoalescer(16 * time.Millisecond)

	queued, merged := c.Offer("s1", delta(AssistantTextDelta, 0, "He"))
	assert.True(t, queued)
	assert.False(t, merged)

	clock.advance(5 * time.Millisecond)
	queued, merged = c.Offer("s1", delta(AssistantTextDelta, 0, "llo"))
	assert.True(t, queued)
	assert.True(t, merged)
	assert.Nil(t, c.FlushDue(), "interval not yet elapsed")

	clock.advance(15 * time.Millisecond)
	out := c.FlushDue()
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].SessionID)
	assert.Equal(t, "Hello", deltaText(t, out[0].Event))
	assert.Equal(t, 0, c.Len())
}

func TestOnlyContiguousSameSlotDeltasMerge(t *testing.T) {
	c, _ := newTestCoalescer(time.Second)
	c.Offer("s1", delta(AssistantThinkingDelta, 0, "a"))
	c.Offer("s1", delta(AssistantThinkingDelta, 0, "b"))
	c.Offer("s1", delta(AssistantTextDelta, 1, "c"))
	c.Offer("s1", delta(AssistantThinkingDelta, 0, "d"))
	c.Offer("s1", delta(AssistantTextDelta, 2, "e"))

	out := c.FlushSession("s1")
	require.Len(t, out, 4)
	assert.Equal(t, "ab", deltaText(t, out[0]))
	assert.Equal(t, "c", deltaText(t, out[1]))
	assert.Equal(t, "d", deltaText(t, out[2]))
	assert.Equal(t, "e", deltaText(t, out[3]))
}

func TestSessionsAreIndependent(t *testing.T) {
	c, _ := newTestCoalescer(time.Second)
	c.Offer("s1", delta(AssistantTextDelta, 0, "x"))
	c.Offer("s2", delta(AssistantTextDelta, 0, "y"))
	c.Offer("s1", delta(AssistantTextDelta, 0, "z"))

	assert.Nil(t, c.FlushSession("missing"))
	out := c.FlushAll()
	require.Len(t, out, 2)
	assert.Equal(t, "s1", out[0].SessionID)
	assert.Equal(t, "xz", deltaText(t, out[0].Event))
	assert.Equal(t, "s2", out[1].SessionID)
	assert.Equal(t, "y", deltaText(t, out[1].Event))
	assert.Nil(t, c.FlushAll())
}

func TestNonDeltaNotQueued(t *testing.T) {
	c, _ := newTestCoalescer(time.Second)
	for _, ev := range []string{
		`{"type":"agent_start"}`,
		`{"type":"message_update","assistantMessageEvent":{"type":"toolcall_delta","contentIndex":0,"delta":"x"}}`,
		`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","contentIndex":1.5,"delta":"x"}}`,
		`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"x"}}`,
	} {
		queued, _ := c.Offer("s1", []byte(ev))
		assert.False(t, queued, ev)
		_, isDelta := deltaKeyOf([]byte(ev))
		assert.False(t, isDelta, ev)
	}
	assert.Equal(t, 0, c.Len())
}

// Coalescing must not change the concatenated text per (kind, slot) run,
// however the deltas are split.
func TestCoalescingPreservesText(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"
	for size := 1; size <= len(text); size++ {
		c, _ := newTestCoalescer(time.Second)
		for i := 0; i < len(text); i += size {
			end := i + size
			if end > len(text) {
				end = len(text)
			}
			c.Offer("s", delta(AssistantTextDelta, 0, text[i:end]))
		}
		out := c.FlushAll()
		require.Len(t, out, 1, "size %d", size)
		assert.Equal(t, text, deltaText(t, out[0].Event), "size %d", size)
	}
}

func TestFlushSessionResetsTimer(t *testing.T) {
	c, clock := newTestCoalescer(10 * time.Millisecond)
	c.Offer("s1", delta(AssistantTextDelta, 0, "a"))
	clock.advance(20 * time.Millisecond)
	c.FlushSession("s1")
	c.Offer("s2", delta(AssistantTextDelta, 0, "b"))
	assert.Nil(t, c.FlushDue())
	clock.advance(10 * time.Millisecond)
	assert.Len(t, c.FlushDue(), 1)
}

func TestMergeStaysWithinPayloadCap(t *testing.T) {
	const maxPayload = 1000
	c, _ := newTestCoalescer(time.Second)
	c.maxPayload = maxPayload

	chunk := strings.Repeat("x", 300)
	var sent strings.Builder
	for i := 0; i < 8; i++ {
		part := fmt.Sprintf("%d%s", i, chunk)
		sent.WriteString(part)
		queued, _ := c.Offer("s1", delta(AssistantTextDelta, 0, part))
		require.True(t, queued)
	}

	out := c.FlushAll()
	require.Greater(t, len(out), 1, "burst should be split across several events")
	var got strings.Builder
	for _, p := range out {
		payload, err := Payload(p.SessionID, p.Event, maxPayload)
		require.NoError(t, err, "every merged event must fit the cap")
		got.WriteString(gjson.GetBytes(payload, "event.assistantMessageEvent.delta").Str)
	}
	assert.Equal(t, sent.String(), got.String())
}

func TestOversizedSingleDeltaStillQueuedAlone(t *testing.T) {
	c, _ := newTestCoalescer(time.Second)
	c.maxPayload = 200
	c.Offer("s1", delta(AssistantTextDelta, 0, "a"))
	c.Offer("s1", delta(AssistantTextDelta, 0, strings.Repeat("b", 400)))
	c.Offer("s1", delta(AssistantTextDelta, 0, "c"))

	out := c.FlushSession("s1")
	require.Len(t, out, 3)
	assert.Equal(t, "a", deltaText(t, out[0]))
	assert.Equal(t, "c", deltaText(t, out[2]))
}
