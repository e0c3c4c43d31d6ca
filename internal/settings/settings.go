// Package settings reads and writes the worker's enabledModels setting.
//
// The worker keeps one JSON settings file per scope: a project file under the
// project directory and a global file in the user's home. The project file wins
// when it defines the key. Writes only touch the enabledModels key and leave
// every other setting as it was.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/log"
)

const enabledModelsKey = "enabledModels"

// Scopes accepted by Set.
const (
	ScopeAuto    = "auto"
	ScopeProject = "project"
	ScopeGlobal  = "global"
)

// Sources reported by Get.
const (
	SourceProject = "project"
	SourceGlobal  = "global"
	SourceNone    = "none"
)

var ErrInvalidScope = errors.New("invalid scope")

// EnabledModels is the effective enabledModels setting. An empty Patterns
// list means all models are enabled.
type EnabledModels struct {
	Patterns []string `json:"patterns"`
	// Defined reports whether the key exists in the file it came from.
	Defined bool   `json:"defined"`
	Source  string `json:"source"`
}

type Store struct {
	globalPath     string
	projectSubpath string
	logger         *slog.Logger
}

// NewStore creates a Store from the settings config section. GlobalPath may
// start with "~".
func NewStore(cfg config.SettingsConfig) (*Store, error) {
	global, err := config.ExpandHome(cfg.GlobalPath)
	if err != nil {
		return nil, err
	}
	sub := cfg.ProjectSubpath
	if sub == "" {
		sub = filepath.Join(".pi", "settings.json")
	}
	return &Store{
		globalPath:     global,
		projectSubpath: sub,
		logger:         log.WithComponent("settings"),
	}, nil
}

// GlobalPath returns the global settings file.
func (s *Store) GlobalPath() string { return s.globalPath }

// ProjectPath returns the settings file for projectDir. A blank projectDir
// means the current working directory.
func (s *Store) ProjectPath(projectDir string) (string, error) {
	dir := strings.TrimSpace(projectDir)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve project directory: %w", err)
		}
		dir = cwd
	}
	return filepath.Join(dir, s.projectSubpath), nil
}

// Get returns the effective setting for projectDir.
func (s *Store) Get(projectDir string) EnabledModels {
	if path, err := s.ProjectPath(projectDir); err == nil {
		if defined, patterns := s.read(path); defined {
			return EnabledModels{Patterns: patterns, Defined: true, Source: SourceProject}
		}
	}
	if s.globalPath != "" {
		if defined, patterns := s.read(s.globalPath); defined {
			return EnabledModels{Patterns: patterns, Defined: true, Source: SourceGlobal}
		}
	}
	return EnabledModels{Patterns: []string{}, Source: SourceNone}
}

// Set writes patterns to the file chosen by scope and returns the new
// effective setting. ScopeAuto (or "") writes the project file when it already
// exists and the global file otherwise.
func (s *Store) Set(patterns []string, scope, projectDir string) (EnabledModels, error) {
	target, err := s.target(scope, projectDir)
	if err != nil {
		return EnabledModels{}, err
	}
	if err := s.write(target, patterns); err != nil {
		return EnabledModels{}, err
	}
	s.logger.Info("enabled models updated", "path", target, "patterns", len(patterns))
	return s.Get(projectDir), nil
}

func (s *Store) target(scope, projectDir string) (string, error) {
	switch scope {
	case ScopeProject:
		return s.ProjectPath(projectDir)
	case ScopeGlobal:
		return s.requireGlobal()
	case ScopeAuto, "":
		if path, err := s.ProjectPath(projectDir); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return path, nil
			}
		}
		return s.requireGlobal()
	default:
		return "", fmt.Errorf("%w %q: expected %q, %q or %q", ErrInvalidScope, scope, ScopeAuto, ScopeProject, ScopeGlobal)
	}
}

func (s *Store) requireGlobal() (string, error) {
	if s.globalPath == "" {
		return "", errors.New("no global settings path configured")
	}
	return s.globalPath, nil
}

// read reports whether path defines enabledModels and its string patterns.
// Unreadable files, invalid JSON and wrong types read as not defined.
func (s *Store) read(path string) (bool, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read settings file", "path", path, "error", err)
		}
		return false, nil
	}
	if !gjson.ValidBytes(data) {
		s.logger.Warn("settings file is not valid JSON", "path", path)
		return false, nil
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return false, nil
	}
	value := root.Get(enabledModelsKey)
	switch {
	case !value.Exists():
		return false, nil
	case value.Type == gjson.Null:
		// Explicit null is defined but unrestricted.
		return true, []string{}
	case !value.IsArray():
		s.logger.Warn("enabledModels is not an array, ignoring", "path", path)
		return false, nil
	}

	patterns := []string{}
	value.ForEach(func(_, item gjson.Result) bool {
		if item.Type != gjson.String {
			return true
		}
		if p := strings.TrimSpace(item.Str); p != "" {
			patterns = append(patterns, p)
		}
		return true
	})
	return true, patterns
}

// write sets enabledModels in path, keeping the rest of the file.
func (s *Store) write(path string, patterns []string) error {
	raw := []byte("{}")
	if data, err := os.ReadFile(path); err == nil && gjson.ValidBytes(data) && gjson.ParseBytes(data).IsObject() {
		raw = data
	}
	if patterns == nil {
		patterns = []string{}
	}
	updated, err := sjson.SetBytes(raw, enabledModelsKey, patterns)
	if err != nil {
		return fmt.Errorf("update settings %s: %w", path, err)
	}
	if err := writeFileAtomic(path, pretty.Pretty(updated), 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
