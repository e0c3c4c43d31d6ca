// Package sidecar launches and supervises the worker process.
package sidecar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/log"
)

// StartOptions carries per-start overrides.
type StartOptions struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Invocation is a fully resolved command line.
type Invocation struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Supervisor resolves, stages and launches the worker.
type Supervisor struct {
	cfg    config.SidecarConfig
	stager *Stager
	logger *slog.Logger
}

// NewSupervisor creates a Supervisor from the sidecar config section.
func NewSupervisor(cfg config.SidecarConfig) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: log.WithComponent("sidecar"),
	}
	if cfg.Archive != "" {
		s.stager = NewStager(cfg.Archive, cfg.RuntimeDir)
	}
	return s
}

// Invocation resolves the binary (staging it first when an archive is
// configured) and builds the argument list.
func (s *Supervisor) Invocation(ctx context.Context, opts StartOptions) (Invocation, error) {
	path, err := s.resolveBinary(ctx)
	if err != nil {
		return Invocation{}, err
	}

	args := append([]string(nil), s.cfg.Args...)
	if p := strings.TrimSpace(opts.Provider); p != "" {
		args = append(args, "--provider", p)
	}
	if m := strings.TrimSpace(opts.Model); m != "" {
		args = append(args, "--model", m)
	}

	dir := s.cfg.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}

	return Invocation{
		Path: path,
		Args: args,
		Dir:  dir,
		Env:  mergeEnv(os.Environ(), s.cfg.Env),
	}, nil
}

// Start launches a new worker. Failures wrap ErrSpawn and are never retried.
func (s *Supervisor) Start(ctx context.Context, opts StartOptions) (*Process, error) {
	inv, err := s.Invocation(ctx, opts)
	if err != nil {
		return nil, err
	}
	return startProcess(inv, s.cfg.StopGrace, s.logger)
}

func (s *Supervisor) resolveBinary(ctx context.Context) (string, error) {
	if s.stager != nil {
		path, err := s.stager.Stage(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: stage runtime: %v", ErrSpawn, err)
		}
		return path, nil
	}

	bin := s.cfg.Binary
	if bin == "" {
		return "", fmt.Errorf("%w: no sidecar binary configured", ErrSpawn)
	}
	if !strings.ContainsRune(bin, filepath.Separator) {
		found, err := exec.LookPath(bin)
		if err != nil {
			return "", fmt.Errorf("%w: sidecar binary %q not found in PATH", ErrSpawn, bin)
		}
		return found, nil
	}
	info, err := os.Stat(bin)
	if err != nil {
		return "", fmt.Errorf("%w: sidecar binary not found at %s", ErrSpawn, bin)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: sidecar binary %s is a directory", ErrSpawn, bin)
	}
	return bin, nil
}

// mergeEnv overlays extra onto base, replacing existing keys.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, override := extra[k]; override {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
