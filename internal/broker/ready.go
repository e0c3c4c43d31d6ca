package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/PriNova/graphone/internal/protocol"
)

// RetryPolicy is a fixed-backoff retry budget.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	// Timeout bounds each attempt.
	Timeout time.Duration
}

// ReadyPolicy returns the default readiness probe policy.
func ReadyPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond, Timeout: 20 * time.Second}
}

// CreatePolicy returns the default create_session retry policy.
func CreatePolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 600 * time.Millisecond, Timeout: 20 * time.Second}
}

func (p RetryPolicy) options() []backoff.RetryOption {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Backoff)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
}

// WaitReady pings the worker until it answers successfully. Any successful
// ping ends the probe; exhausting the policy returns ErrNotReady wrapping the
// last failure.
func (b *Broker) WaitReady(ctx context.Context, policy RetryPolicy) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (*protocol.Response, error) {
		attempt++
		cmd := &protocol.Command{ID: uuid.NewString(), Type: protocol.CmdPing}
		resp, err := b.SendWithResponse(ctx, cmd, policy.Timeout)
		if err != nil {
			b.logger.Debug("readiness probe failed", "attempt", attempt, "error", err)
			return nil, err
		}
		if !resp.Success {
			return nil, fmt.Errorf("ping rejected: %s", resp.Error)
		}
		return resp, nil
	}, policy.options()...)
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrNotReady, attempt, err)
	}
	b.logger.Debug("sidecar ready", "attempts", attempt)
	return nil
}

// RetryOnTimeout sends cmd and retries only when the attempt timed out.
// Every attempt gets a fresh request id; all other fields are reused, so
// client-chosen identifiers such as a session id stay stable across retries.
// Unsuccessful responses and other errors are returned immediately.
func (b *Broker) RetryOnTimeout(ctx context.Context, policy RetryPolicy, cmd *protocol.Command) (*protocol.Response, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (*protocol.Response, error) {
		attempt++
		try := *cmd
		try.ID = uuid.NewString()
		resp, err := b.SendWithResponse(ctx, &try, policy.Timeout)
		if err == nil {
			return resp, nil
		}
		if !IsTimeout(err) {
			return nil, backoff.Permanent(err)
		}
		b.logger.Warn("request timed out, retrying", "command", cmd.Type, "attempt", attempt, "max_attempts", policy.Attempts)
		return nil, err
	}, policy.options()...)
}
