// Package doctor checks a broker configuration and the worker runtime it
// points at, without starting the worker.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/PriNova/graphone/internal/auth"
	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/log"
	"github.com/PriNova/graphone/internal/sidecar"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// maxStartBudget is how long a UI may reasonably wait for a cold start.
const maxStartBudget = 2 * time.Minute

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var knownScopes = map[string]bool{
	auth.ScopeAll:         true,
	auth.ScopeAgentRead:   true,
	auth.ScopeAgentWrite:  true,
	auth.ScopeEventsRead:  true,
	auth.ScopeSettingsRO:  true,
	auth.ScopeSettingsRW:  true,
	auth.ScopeMetricsRead: true,
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
	// lookPath resolves bare binary names; exec.LookPath outside tests.
	lookPath func(string) (string, error)
}

func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, lookPath: exec.LookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateSidecar(r)
	d.validateRPC(r)
	d.validateAPIConfig(r)
	d.validateTokenScopes(r)
	d.validateSettings(r)
	d.warnMissingEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	switch strings.ToLower(d.cfg.Service.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("log_level must be one of debug, info, warn, error (got %q)", d.cfg.Service.LogLevel))
	}
	if d.cfg.Service.LogStderr {
		return
	}
	dir := filepath.Dir(log.ResolvePath(d.cfg.Service.LogPath))
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		d.addError(r, "service", "service.log_path", fmt.Sprintf("log directory %s is not a directory", dir))
	}
}

// validateSidecar checks that the worker can be located, without staging or
// starting it.
func (d *Doctor) validateSidecar(r *Result) {
	sc := d.cfg.Sidecar

	if sc.Archive != "" {
		if sc.RuntimeDir == "" {
			d.addError(r, "sidecar", "sidecar.runtime_dir", "runtime_dir is required when archive is set")
		}
		info, err := os.Stat(sc.Archive)
		switch {
		case err != nil:
			d.addError(r, "sidecar", "sidecar.archive", fmt.Sprintf("archive not readable: %v", err))
		case info.IsDir():
			d.addError(r, "sidecar", "sidecar.archive", fmt.Sprintf("archive %s is a directory", sc.Archive))
		case !strings.HasSuffix(sc.Archive, ".gz"):
			d.addWarning(r, "sidecar", "sidecar.archive", "archive does not end in .gz; it must be gzip-compressed")
		}
		if sc.RuntimeDir != "" {
			staged := sidecar.NewStager(sc.Archive, sc.RuntimeDir).BinaryPath()
			if err := sidecar.ValidateExecutable(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
				d.addWarning(r, "sidecar", "sidecar.runtime_dir",
					fmt.Sprintf("staged binary %s is invalid and will be re-extracted", staged))
			}
		}
	} else {
		d.validateBinary(r, sc.Binary)
	}

	if sc.Dir != "" {
		if info, err := os.Stat(sc.Dir); err != nil || !info.IsDir() {
			d.addError(r, "sidecar", "sidecar.dir", fmt.Sprintf("working directory %s does not exist", sc.Dir))
		}
	}
	if sc.StopGrace < 0 {
		d.addError(r, "sidecar", "sidecar.stop_grace", "stop_grace must not be negative")
	}
	if sc.MaxFrameBytes > 0 && sc.MaxFrameBytes < 64<<10 {
		d.addWarning(r, "sidecar", "sidecar.max_frame_bytes",
			fmt.Sprintf("max_frame_bytes %d is small; large responses will be dropped", sc.MaxFrameBytes))
	}
	if !containsArg(sc.Args, "rpc") {
		d.addWarning(r, "sidecar", "sidecar.args", "args do not select rpc mode; the worker may not speak the protocol")
	}
}

func (d *Doctor) validateBinary(r *Result, bin string) {
	if bin == "" {
		d.addError(r, "sidecar", "sidecar.binary", "binary is required when no archive is set")
		return
	}
	path := bin
	if !strings.ContainsRune(bin, filepath.Separator) {
		found, err := d.lookPath(bin)
		if err != nil {
			d.addError(r, "sidecar", "sidecar.binary", fmt.Sprintf("binary %q not found in PATH", bin))
			return
		}
		path = found
	}
	info, err := os.Stat(path)
	if err != nil {
		d.addError(r, "sidecar", "sidecar.binary", fmt.Sprintf("binary not found at %s", path))
		return
	}
	if info.IsDir() {
		d.addError(r, "sidecar", "sidecar.binary", fmt.Sprintf("binary %s is a directory", path))
		return
	}
	if info.Mode().Perm()&0o111 == 0 {
		d.addError(r, "sidecar", "sidecar.binary", fmt.Sprintf("binary %s is not executable", path))
		return
	}
	if err := sidecar.ValidateExecutable(path); err != nil {
		// Launcher scripts are fine, just unusual.
		d.addWarning(r, "sidecar", "sidecar.binary", fmt.Sprintf("%s is not a native executable", path))
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func (d *Doctor) validateRPC(r *Result) {
	rpc := d.cfg.RPC
	if rpc.DefaultTimeout <= 0 || rpc.ReadyTimeout <= 0 || rpc.CreateTimeout <= 0 {
		d.addError(r, "rpc", "rpc", "timeouts must be positive")
		return
	}
	if rpc.ReadyAttempts < 1 || rpc.CreateAttempts < 1 {
		d.addError(r, "rpc", "rpc", "attempts must be at least 1")
		return
	}
	budget := time.Duration(rpc.ReadyAttempts)*rpc.ReadyTimeout + time.Duration(rpc.ReadyAttempts-1)*rpc.ReadyBackoff
	if budget > maxStartBudget {
		d.addWarning(r, "rpc", "rpc.ready_timeout",
			fmt.Sprintf("a failing readiness probe blocks callers for up to %s", budget))
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
		return
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no tokens configured; every request will be rejected")
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.API.Listen, err))
		return
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		d.addWarning(r, "api", "api.listen", fmt.Sprintf("listening on %s exposes the agent beyond this machine", host))
	}
}

func (d *Doctor) validateTokenScopes(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		if len(token.Scopes) == 0 {
			d.addWarning(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].scopes", i), "token has no scopes")
		}
		for j, scope := range token.Scopes {
			if !knownScopes[strings.TrimSpace(scope)] {
				d.addError(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j),
					fmt.Sprintf("unknown scope %q", scope))
			}
		}
	}
}

// validateSettings checks the global settings file the worker shares with
// the broker. A missing file is normal.
func (d *Doctor) validateSettings(r *Result) {
	path := d.cfg.Settings.GlobalPath
	if path == "" {
		d.addWarning(r, "settings", "settings.global_path", "no global settings path; enabled models can only be set per project")
		return
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		d.addWarning(r, "settings", "settings.global_path", fmt.Sprintf("settings file not readable: %v", err))
		return
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		d.addWarning(r, "settings", "settings.global_path", fmt.Sprintf("%s is not a JSON object and will be replaced on write", path))
		return
	}
	models := gjson.GetBytes(data, "enabledModels")
	if models.Exists() && models.Type != gjson.Null && !models.IsArray() {
		d.addWarning(r, "settings", "settings.global_path", "enabledModels is not an array and is ignored")
	}
}

func (d *Doctor) warnMissingEnvVars(r *Result) {
	check := func(field, value string) {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			if _, ok := os.LookupEnv(m[1]); !ok {
				d.addWarning(r, "env", field, fmt.Sprintf("environment variable ${%s} is not set", m[1]))
			}
		}
	}
	for k, v := range d.cfg.Sidecar.Env {
		check("sidecar.env."+k, v)
	}
	for i, a := range d.cfg.Sidecar.Args {
		check(fmt.Sprintf("sidecar.args[%d]", i), a)
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, label string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", label, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
