// Package router consumes a worker's output stream and routes what it finds:
// responses to the broker, session events through compaction to the UI bus,
// everything else to the log.
package router

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/PriNova/graphone/internal/compact"
	"github.com/PriNova/graphone/internal/events"
	"github.com/PriNova/graphone/internal/framing"
	"github.com/PriNova/graphone/internal/log"
	"github.com/PriNova/graphone/internal/metrics"
	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/sidecar"
)

const (
	logPreviewChars     = 2000
	invalidPreviewChars = 400
	codepointPrefix     = 8
	defaultQueue        = 100
)

// Publisher is the UI bus. *events.Hub implements it.
type Publisher interface {
	Publish(eventType string, data []byte) events.Event
}

// Options tune a Router. Zero values select the defaults.
type Options struct {
	FlushInterval   time.Duration
	MaxPayloadBytes int
	MaxFrameBytes   int
	ResponseQueue   int
	// OnTerminate runs after buffers are flushed and before the terminal
	// notice is published, so the worker can be detached first.
	OnTerminate func(final sidecar.Output)
}

// Router is single-use: one Router per worker process.
type Router struct {
	opts    Options
	pub     Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	responses chan *protocol.Response
	stdout    *framing.ObjectScanner
	stderr    framing.LineScanner
	coalescer *compact.Coalescer
}

func New(pub Publisher, m *metrics.Metrics, opts Options) *Router {
	if m == nil {
		m = metrics.New()
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = compact.DefaultFlushInterval
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = compact.DefaultMaxPayloadBytes
	}
	if opts.ResponseQueue <= 0 {
		opts.ResponseQueue = defaultQueue
	}
	return &Router{
		opts:      opts,
		pub:       pub,
		metrics:   m,
		logger:    log.WithComponent("router"),
		responses: make(chan *protocol.Response, opts.ResponseQueue),
		stdout:    framing.NewObjectScanner(opts.MaxFrameBytes),
		coalescer: compact.NewCoalescer(opts.FlushInterval, opts.MaxPayloadBytes),
	}
}

// Responses is the bounded channel the broker's resolver drains. It is
// closed when Run returns.
func (r *Router) Responses() <-chan *protocol.Response {
	return r.responses
}

// Run drains output until the worker's terminal item and returns it.
func (r *Router) Run(output <-chan sidecar.Output) sidecar.Output {
	defer close(r.responses)

	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case item, ok := <-output:
			if !ok {
				final := sidecar.Output{Kind: sidecar.OutputError, Err: fmt.Errorf("sidecar output closed")}
				r.terminate(final)
				return final
			}
			switch item.Kind {
			case sidecar.OutputStdout:
				r.handleStdout(item.Data)
			case sidecar.OutputStderr:
				for _, line := range r.stderr.Feed(item.Data) {
					r.logger.Info("sidecar stderr", "line", line)
				}
			default:
				r.terminate(item)
				return item
			}
		case <-ticker.C:
			r.emitPending(r.coalescer.FlushDue())
		}
	}
}

func (r *Router) handleStdout(chunk []byte) {
	for _, unit := range r.stdout.Feed(chunk) {
		r.handleUnit(unit)
	}
	r.emitPending(r.coalescer.FlushDue())
}

func (r *Router) handleUnit(unit framing.Unit) {
	switch unit.Kind {
	case framing.UnitObject:
		r.handleObject(unit.Data)
	case framing.UnitText:
		text := framing.StripText(unit.Data)
		if text == "" {
			return
		}
		r.metrics.InvalidFrames.WithLabelValues("text").Inc()
		r.logger.Warn("sidecar stdout non-JSON output",
			"len", len(text),
			"preview", log.Shorten(text, invalidPreviewChars),
			"prefix", framing.Codepoints(text, codepointPrefix))
	case framing.UnitOverflow:
		r.metrics.InvalidFrames.WithLabelValues("overflow").Inc()
		r.logger.Warn("sidecar stdout frame exceeded size limit, resynchronizing",
			"preview", log.Shorten(string(unit.Data), invalidPreviewChars))
	}
}

func (r *Router) handleObject(raw []byte) {
	data := framing.Sanitize(raw)
	if data == nil || !gjson.ValidBytes(data) {
		r.metrics.InvalidFrames.WithLabelValues("invalid_json").Inc()
		s := string(raw)
		r.logger.Warn("sidecar stdout invalid JSON",
			"len", len(raw),
			"preview", log.Shorten(s, invalidPreviewChars),
			"prefix", framing.Codepoints(s, codepointPrefix))
		return
	}

	switch kind := protocol.Kind(data); kind {
	case protocol.TypeResponse:
		r.handleResponse(data)
	case protocol.TypeSessionEvent:
		ev, err := protocol.DecodeSessionEvent(data)
		if err != nil {
			r.metrics.InvalidFrames.WithLabelValues("bad_session_event").Inc()
			r.logger.Warn("failed to decode session_event", "len", len(data), "error", err)
			return
		}
		r.handleSessionEvent(ev.SessionID, ev.Event)
	default:
		if kind != compact.EventMessageUpdate {
			r.logger.Info("sidecar stdout", "data", log.Shorten(string(data), logPreviewChars))
		}
		if len(data) > r.opts.MaxPayloadBytes {
			r.metrics.EventsDropped.WithLabelValues("oversized").Inc()
			r.logger.Warn("skipping oversized agent-event payload", "len", len(data))
			return
		}
		r.publish(events.AgentEvent, data)
	}
}

func (r *Router) handleResponse(data []byte) {
	resp, err := protocol.DecodeResponse(data)
	if err != nil {
		r.metrics.InvalidFrames.WithLabelValues("bad_response").Inc()
		r.logger.Warn("failed to decode response",
			"len", len(data), "command", protocol.ClaimedCommand(data), "error", err)
		return
	}
	if resp.ID == "" {
		r.logger.Debug("dropping response without id", "command", resp.Command)
		return
	}
	select {
	case r.responses <- resp:
	default:
		r.metrics.EventsDropped.WithLabelValues("response_queue_full").Inc()
		r.logger.Warn("failed to queue response (channel full)", "request_id", resp.ID, "command", resp.Command)
	}
}

func (r *Router) handleSessionEvent(sessionID string, event []byte) {
	compacted := compact.Event(event)
	if queued, merged := r.coalescer.Offer(sessionID, compacted); queued {
		if merged {
			r.metrics.DeltasMerged.Inc()
		}
		return
	}
	for _, ev := range r.coalescer.FlushSession(sessionID) {
		r.emitSession(sessionID, ev)
	}
	r.emitSession(sessionID, compacted)
}

func (r *Router) emitPending(pending []compact.Pending) {
	for _, p := range pending {
		r.emitSession(p.SessionID, p.Event)
	}
}

func (r *Router) emitSession(sessionID string, event []byte) {
	payload, err := compact.Payload(sessionID, event, r.opts.MaxPayloadBytes)
	if err != nil {
		r.metrics.EventsDropped.WithLabelValues("oversized").Inc()
		log.WithSession(sessionID).Warn("skipping oversized session_event payload", "component", "router", "error", err)
		return
	}
	if gjson.GetBytes(event, "type").Str != compact.EventMessageUpdate {
		log.WithSession(sessionID).Debug("sidecar session_event", "component", "router", "payload", log.Shorten(string(payload), logPreviewChars))
	}
	r.publish(events.AgentEvent, payload)
}

func (r *Router) publish(name string, data []byte) {
	r.pub.Publish(name, data)
	r.metrics.EventsEmitted.WithLabelValues(name).Inc()
}

// terminate flushes every buffer in stream order and publishes exactly one
// terminal notice.
func (r *Router) terminate(final sidecar.Output) {
	if n := r.stdout.Buffered(); n > 0 {
		r.logger.Debug("flushing unterminated stdout", "bytes", n)
	}
	for _, unit := range r.stdout.Flush() {
		r.handleUnit(unit)
	}
	if n := r.coalescer.Len(); n > 0 {
		r.logger.Debug("flushing buffered deltas before termination", "count", n)
	}
	r.emitPending(r.coalescer.FlushAll())
	if line := r.stderr.Flush(); line != "" {
		r.logger.Info("sidecar stderr", "line", line)
	}

	if r.opts.OnTerminate != nil {
		r.opts.OnTerminate(final)
	}

	switch final.Kind {
	case sidecar.OutputTerminated:
		r.metrics.Terminations.WithLabelValues("exit").Inc()
		code := []byte("null")
		if final.Signal == "" {
			code = []byte(fmt.Sprint(final.Code))
		}
		r.logger.Warn("sidecar terminated", "code", final.Code, "signal", final.Signal)
		r.publish(events.AgentTerminated, code)
	default:
		r.metrics.Terminations.WithLabelValues("error").Inc()
		msg := "unknown sidecar error"
		if final.Err != nil {
			msg = final.Err.Error()
		}
		r.logger.Error("sidecar error", "error", msg)
		r.publish(events.AgentError, gjson.AppendJSONString(nil, msg))
	}
}
