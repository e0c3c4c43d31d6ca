package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PriNova/graphone/internal/agent"
	"github.com/PriNova/graphone/internal/api"
	"github.com/PriNova/graphone/internal/auth"
	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/events"
	"github.com/PriNova/graphone/internal/lock"
	"github.com/PriNova/graphone/internal/log"
	"github.com/PriNova/graphone/internal/metrics"
	"github.com/PriNova/graphone/internal/settings"
	"github.com/PriNova/graphone/internal/sidecar"
	"github.com/PriNova/graphone/internal/state"
)

type serveOptions struct {
	lockPath string
	eager    bool
	provider string
	model    string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker and the UI bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			return serve(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.lockPath, "lock", filepath.Join(os.TempDir(), "graphone-broker.lock"),
		"PID lock file guarding against a second broker")
	cmd.Flags().BoolVar(&opts.eager, "eager", false, "Start the worker immediately instead of on first use")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider override for an eager start")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model override for an eager start")
	return cmd
}

// serve runs until parent is done or SIGINT/SIGTERM arrives, then stops the
// worker.
func serve(parent context.Context, cfg *config.Config, opts serveOptions) error {
	logger := log.WithComponent("main")
	logger.Info("graphone-broker starting", "version", version, "config", cfg.SourcePath)

	pidLock, err := lock.TryAcquire(opts.lockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another broker may be running)", "path", opts.lockPath, "error", err)
		return err
	}
	defer pidLock.Release()
	logger.Debug("PID lock acquired", "path", pidLock.Path())

	settingsStore, err := settings.NewStore(cfg.Settings)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	m := metrics.New()
	hub := events.NewHub(cfg.Events.HubCapacity)
	svc := agent.New(cfg, sidecar.NewSupervisor(cfg.Sidecar), state.NewStore(), hub, m)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		return nil
	})

	if opts.eager {
		g.Go(func() error {
			startOpts := sidecar.StartOptions{Provider: opts.provider, Model: opts.model}
			if err := svc.EnsureStarted(gctx, startOpts); err != nil {
				// Not fatal: the next UI call retries the start.
				logger.Warn("eager worker start failed", "error", err)
			}
			return nil
		})
	}

	if cfg.API.Enabled {
		server := api.New(apiConfig(cfg), svc, settingsStore, hub, m.Handler(), log.WithComponent("api"))
		g.Go(func() error {
			if err := server.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Sidecar.StopGrace+5*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown: %w", err))
	}

	logger.Info("graphone-broker stopped")
	return result.ErrorOrNil()
}

func apiConfig(cfg *config.Config) api.Config {
	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{
			Token:  t.Token,
			Scopes: t.Scopes,
		})
	}
	return api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
		Tokens: tokens,
	}
}
