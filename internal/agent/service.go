// Package agent is the operation surface the UI calls into. It owns the
// worker lifecycle and turns each UI operation into worker commands.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/PriNova/graphone/internal/broker"
	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/events"
	"github.com/PriNova/graphone/internal/log"
	"github.com/PriNova/graphone/internal/metrics"
	"github.com/PriNova/graphone/internal/router"
	"github.com/PriNova/graphone/internal/sidecar"
	"github.com/PriNova/graphone/internal/state"
)

// Launcher starts worker processes. *sidecar.Supervisor implements it.
type Launcher interface {
	Start(ctx context.Context, opts sidecar.StartOptions) (*sidecar.Process, error)
}

// running tracks the worker of one generation.
type running struct {
	gen     uint64
	proc    *sidecar.Process
	drained chan struct{}
}

type Service struct {
	cfg      *config.Config
	launcher Launcher
	store    *state.Store
	broker   *broker.Broker
	hub      *events.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// startMu serializes check-then-spawn so concurrent callers share one worker.
	startMu sync.Mutex
	mu      sync.Mutex
	current *running
}

// New wires a Service. The store, hub and metrics are shared with the rest of
// the process; a nil metrics gets a private registry.
func New(cfg *config.Config, launcher Launcher, store *state.Store, hub *events.Hub, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		cfg:      cfg,
		launcher: launcher,
		store:    store,
		broker:   broker.New(store, m, cfg.RPC.DefaultTimeout),
		hub:      hub,
		metrics:  m,
		logger:   log.WithComponent("agent"),
	}
}

// Running reports whether a worker is attached.
func (s *Service) Running() bool {
	return s.store.HasChild()
}

// PID returns the worker's process id, or 0 when none is running.
func (s *Service) PID() int {
	child, _, ok := s.store.Child()
	if !ok {
		return 0
	}
	return child.PID()
}

// EnsureStarted spawns the worker unless one is already attached and waits
// until it answers a ping. Concurrent calls spawn at most one worker. When the
// readiness probe fails the worker is killed and detached, so the next call
// starts fresh.
func (s *Service) EnsureStarted(ctx context.Context, opts sidecar.StartOptions) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.store.HasChild() {
		return nil
	}

	proc, err := s.launcher.Start(ctx, opts)
	if err != nil {
		s.logger.Error("failed to start sidecar", "error", err)
		return err
	}
	gen, err := s.store.SetChild(proc)
	if err != nil {
		_ = proc.Kill()
		return err
	}
	s.metrics.Spawns.Inc()

	run := &running{gen: gen, proc: proc, drained: make(chan struct{})}
	s.mu.Lock()
	s.current = run
	s.mu.Unlock()

	r := router.New(s.hub, s.metrics, router.Options{
		FlushInterval:   s.cfg.Events.FlushInterval,
		MaxPayloadBytes: s.cfg.Events.MaxPayloadChars,
		MaxFrameBytes:   s.cfg.Sidecar.MaxFrameBytes,
		ResponseQueue:   s.cfg.RPC.ResponseQueue,
		OnTerminate: func(final sidecar.Output) {
			if detached, released := s.store.Detach(gen, broker.ErrTerminated); detached {
				s.logger.Warn("sidecar detached", "pid", proc.PID(), "released_requests", released)
			}
		},
	})
	go s.broker.Resolve(r.Responses())
	go func() {
		defer close(run.drained)
		r.Run(proc.Output())
	}()

	s.logger.Info("sidecar spawned", "pid", proc.PID(), "generation", gen)

	if err := s.broker.WaitReady(ctx, s.readyPolicy()); err != nil {
		s.logger.Error("sidecar readiness failed, killing", "pid", proc.PID(), "error", err)
		_ = proc.Kill()
		s.store.Detach(gen, broker.ErrTerminated)
		return err
	}
	return nil
}

// Shutdown stops the worker, if any, and waits for its output to drain.
func (s *Service) Shutdown(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	run := s.current
	s.current = nil
	s.mu.Unlock()
	if run == nil {
		return nil
	}

	var result *multierror.Error
	if err := run.proc.Stop(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("stop sidecar: %w", err))
	}
	select {
	case <-run.drained:
	case <-ctx.Done():
		result = multierror.Append(result, fmt.Errorf("wait for sidecar output: %w", ctx.Err()))
	}
	s.store.Detach(run.gen, broker.ErrTerminated)
	return result.ErrorOrNil()
}

func (s *Service) readyPolicy() broker.RetryPolicy {
	return broker.RetryPolicy{
		Attempts: s.cfg.RPC.ReadyAttempts,
		Backoff:  s.cfg.RPC.ReadyBackoff,
		Timeout:  s.cfg.RPC.ReadyTimeout,
	}
}

func (s *Service) createPolicy() broker.RetryPolicy {
	return broker.RetryPolicy{
		Attempts: s.cfg.RPC.CreateAttempts,
		Backoff:  s.cfg.RPC.CreateBackoff,
		Timeout:  s.cfg.RPC.CreateTimeout,
	}
}

func (s *Service) timeout() time.Duration {
	return s.cfg.RPC.DefaultTimeout
}

// IsUnavailable reports errors that mean the worker is not there to answer.
func IsUnavailable(err error) bool {
	return errors.Is(err, broker.ErrNotStarted) ||
		errors.Is(err, broker.ErrTerminated) ||
		errors.Is(err, broker.ErrNotReady) ||
		errors.Is(err, sidecar.ErrSpawn)
}
