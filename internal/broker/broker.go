// Package broker multiplexes request/response pairs over the worker's stdin
// and correlates the responses the router hands back.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PriNova/graphone/internal/log"
	"github.com/PriNova/graphone/internal/metrics"
	"github.com/PriNova/graphone/internal/protocol"
	"github.com/PriNova/graphone/internal/state"
)

// DefaultTimeout applies when SendWithResponse is called without one.
const DefaultTimeout = 5 * time.Second

var (
	ErrNotStarted = errors.New("sidecar not started")
	ErrWrite      = errors.New("failed to write to sidecar")
	ErrTimeout    = errors.New("timed out waiting for sidecar response")
	ErrTerminated = errors.New("sidecar terminated")
	ErrNotReady   = errors.New("sidecar not ready")
	ErrMissingID  = errors.New("command requires an id")
)

// IsTimeout reports whether err is a response timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

type Broker struct {
	store          *state.Store
	metrics        *metrics.Metrics
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// New creates a Broker over store. A nil m gets a private registry and a
// non-positive defaultTimeout selects DefaultTimeout.
func New(store *state.Store, m *metrics.Metrics, defaultTimeout time.Duration) *Broker {
	if m == nil {
		m = metrics.New()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Broker{
		store:          store,
		metrics:        m,
		defaultTimeout: defaultTimeout,
		logger:         log.WithComponent("broker"),
	}
}

// Send writes a command without waiting for a reply.
func (b *Broker) Send(ctx context.Context, cmd *protocol.Command) error {
	line, err := protocol.MarshalCommand(cmd)
	if err != nil {
		return err
	}
	child, _, ok := b.store.Child()
	if !ok {
		return ErrNotStarted
	}
	if err := child.Write(line); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	b.logger.Debug("command sent", "command", cmd.Type, "session_id", cmd.SessionID)
	return nil
}

// SendWithResponse writes cmd and waits up to timeout for the response with
// the same id. The waiter is registered before the write so a fast reply is
// never missed, and removed on every exit path.
func (b *Broker) SendWithResponse(ctx context.Context, cmd *protocol.Command, timeout time.Duration) (*protocol.Response, error) {
	if cmd == nil || cmd.ID == "" {
		return nil, ErrMissingID
	}
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}
	line, err := protocol.MarshalCommand(cmd)
	if err != nil {
		return nil, err
	}
	child, _, ok := b.store.Child()
	if !ok {
		return nil, ErrNotStarted
	}

	replies, err := b.store.Register(cmd.ID)
	if err != nil {
		return nil, err
	}
	b.metrics.Pending.Inc()
	defer b.metrics.Pending.Dec()

	logger := log.WithRequest(cmd.ID).With("component", "broker", "command", cmd.Type)
	start := time.Now()

	if err := child.Write(line); err != nil {
		b.store.Remove(cmd.ID)
		b.observe(cmd.Type, metrics.OutcomeWriteError, start)
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		return b.finish(cmd.Type, reply, start)
	case <-timer.C:
		if !b.store.Remove(cmd.ID) {
			// Resolved or released between the timer firing and Remove.
			return b.finish(cmd.Type, <-replies, start)
		}
		logger.Warn("sidecar response timed out", "timeout", timeout)
		b.observe(cmd.Type, metrics.OutcomeTimeout, start)
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, cmd.Type, timeout)
	case <-ctx.Done():
		if !b.store.Remove(cmd.ID) {
			return b.finish(cmd.Type, <-replies, start)
		}
		b.observe(cmd.Type, metrics.OutcomeFailed, start)
		return nil, ctx.Err()
	}
}

func (b *Broker) finish(command string, reply state.Reply, start time.Time) (*protocol.Response, error) {
	if reply.Err != nil {
		b.observe(command, metrics.OutcomeReleased, start)
		return nil, reply.Err
	}
	outcome := metrics.OutcomeOK
	if !reply.Response.Success {
		outcome = metrics.OutcomeFailed
	}
	b.observe(command, outcome, start)
	return reply.Response, nil
}

func (b *Broker) observe(command, outcome string, start time.Time) {
	b.metrics.Requests.WithLabelValues(command, outcome).Inc()
	b.metrics.RequestTime.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// Resolve delivers each response from responses to its waiter until the
// channel is closed. Responses without a waiter are dropped.
func (b *Broker) Resolve(responses <-chan *protocol.Response) {
	for resp := range responses {
		if b.store.Resolve(resp) {
			continue
		}
		b.metrics.LateResponses.Inc()
		b.logger.Debug("dropping response without waiter", "request_id", resp.ID, "command", resp.Command)
	}
}
