package doctor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PriNova/graphone/internal/config"
)

// writeBinary creates an executable file with an ELF header.
func writeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pi-agent")
	if err := os.WriteFile(path, []byte("\x7fELF fake"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Service.LogPath = filepath.Join(dir, "logs", "graphone.log")
	cfg.Sidecar.Binary = writeBinary(t, dir)
	cfg.API.Auth.APIKey = "secret"
	cfg.Settings.GlobalPath = filepath.Join(dir, "settings.json")
	return cfg
}

func newDoctor(cfg *config.Config) *Doctor {
	d := New(cfg)
	d.lookPath = func(name string) (string, error) { return "", errors.New("not found") }
	return d
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := newDoctor(validConfig(t)).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
}

func TestValidate_BinaryNotInPath(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Sidecar.Binary = "pi-agent"
	r := newDoctor(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "sidecar", "not found in PATH")
}

func TestValidate_BinaryFromPath(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	found := cfg.Sidecar.Binary
	cfg.Sidecar.Binary = "pi-agent"
	d := New(cfg)
	d.lookPath = func(name string) (string, error) { return found, nil }
	if r := d.Validate(); !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
}

func TestValidate_BinaryNotExecutable(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	if err := os.Chmod(cfg.Sidecar.Binary, 0o644); err != nil {
		t.Fatal(err)
	}
	r := newDoctor(cfg).Validate()
	assertHasError(t, r, "sidecar", "not executable")
}

func TestValidate_ScriptBinaryWarns(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	if err := os.WriteFile(cfg.Sidecar.Binary, []byte("#!/bin/sh\nexec node agent.js\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := newDoctor(cfg).Validate()
	if !r.Valid {
		t.Fatalf("scripts are allowed, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "sidecar", "not a native executable")
}

func TestValidate_ArchiveChecks(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Sidecar.Archive = filepath.Join(t.TempDir(), "missing.gz")
	cfg.Sidecar.RuntimeDir = ""
	r := newDoctor(cfg).Validate()
	assertHasError(t, r, "sidecar", "runtime_dir is required")
	assertHasError(t, r, "sidecar", "archive not readable")
}

func TestValidate_InvalidStagedBinaryWarns(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	dir := t.TempDir()
	cfg.Sidecar.Archive = filepath.Join(dir, "pi-agent.gz")
	cfg.Sidecar.RuntimeDir = filepath.Join(dir, "runtime")
	if err := os.WriteFile(cfg.Sidecar.Archive, []byte("gz"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Sidecar.RuntimeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Sidecar.RuntimeDir, "pi-agent"), []byte("junk"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := newDoctor(cfg).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "sidecar", "re-extracted")
}

func TestValidate_NoRPCMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Sidecar.Args = []string{"--interactive"}
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "sidecar", "rpc mode")
}

func TestValidate_RPCBudget(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.RPC.ReadyTimeout = time.Minute
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "rpc", "readiness probe")

	cfg.RPC.CreateAttempts = 0
	r = newDoctor(cfg).Validate()
	assertHasError(t, r, "rpc", "attempts")
}

func TestValidate_APIChecks(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.API.Auth.APIKey = ""
	cfg.API.Listen = "0.0.0.0:7433"
	r := newDoctor(cfg).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "api", "no tokens configured")
	assertHasWarning(t, r, "api", "beyond this machine")

	cfg.API.Listen = "not-an-address"
	r = newDoctor(cfg).Validate()
	assertHasError(t, r, "api", "invalid listen address")
}

func TestValidate_TokenScopes(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.API.Auth.Tokens = []config.APIToken{
		{Token: "ui", Scopes: []string{"agent:rw", "events:ro"}},
		{Token: "old", Scopes: []string{"jobs:ro"}},
		{Token: "empty"},
	}
	r := newDoctor(cfg).Validate()
	assertHasError(t, r, "token_scopes", `unknown scope "jobs:ro"`)
	assertHasWarning(t, r, "token_scopes", "no scopes")
	if len(r.Errors) != 1 {
		t.Fatalf("expected exactly one error, got: %v", r.Errors)
	}
}

func TestValidate_SettingsFile(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)

	if err := os.WriteFile(cfg.Settings.GlobalPath, []byte(`{"enabledModels":"all"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	assertHasWarning(t, newDoctor(cfg).Validate(), "settings", "not an array")

	if err := os.WriteFile(cfg.Settings.GlobalPath, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	assertHasWarning(t, newDoctor(cfg).Validate(), "settings", "not a JSON object")

	if err := os.WriteFile(cfg.Settings.GlobalPath, []byte(`{"enabledModels":null}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := newDoctor(cfg).Validate(); len(r.Warnings) != 0 {
		t.Fatalf("null enabledModels is valid, got: %v", r.Warnings)
	}
}

func TestValidate_MissingEnvVars(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Sidecar.Env = map[string]string{"ANTHROPIC_API_KEY": "${GRAPHONE_DOCTOR_UNSET_VAR}"}
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "env", "GRAPHONE_DOCTOR_UNSET_VAR")
}

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Service.LogLevel = "verbose"
	r := newDoctor(cfg).Validate()
	assertHasError(t, r, "service", "log_level")
}

func TestFormatHuman_Valid(t *testing.T) {
	t.Parallel()
	out := FormatHuman(&Result{Valid: true})
	if out != "Configuration valid.\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFormatHuman_Errors(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "test", Field: "x.y", Message: "broken"}},
		Warnings: []Issue{{Category: "test", Message: "odd"}},
	}
	out := FormatHuman(r)
	if !strings.Contains(out, "ERROR [test] x.y: broken") || !strings.Contains(out, "WARN  [test] odd") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

// --- helpers ---

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
