package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv points at a config file, overriding discovery.
const ConfigEnv = "GRAPHONE_CONFIG"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. An empty path returns
// the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		cfg := Defaults()
		if err := expandPaths(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	cfg = applyConfigDefaults(cfg)
	if err := expandPaths(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", absPath, err)
	}
	return cfg, nil
}

// Discover returns the config file to use, or "" when none exists.
// Priority order: $GRAPHONE_CONFIG, ~/.config/graphone/broker.yaml, ./graphone.yaml.
func Discover() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "graphone", "broker.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat("graphone.yaml"); err == nil {
		return "graphone.yaml"
	}
	return ""
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}

	if cfg.Sidecar.Binary == "" && cfg.Sidecar.Archive == "" {
		cfg.Sidecar.Binary = defaults.Sidecar.Binary
	}
	if cfg.Sidecar.Args == nil {
		cfg.Sidecar.Args = defaults.Sidecar.Args
	}
	if cfg.Sidecar.StopGrace == 0 {
		cfg.Sidecar.StopGrace = defaults.Sidecar.StopGrace
	}
	if cfg.Sidecar.MaxFrameBytes == 0 {
		cfg.Sidecar.MaxFrameBytes = defaults.Sidecar.MaxFrameBytes
	}

	rpc := &cfg.RPC
	if rpc.DefaultTimeout == 0 {
		rpc.DefaultTimeout = defaults.RPC.DefaultTimeout
	}
	if rpc.ReadyTimeout == 0 {
		rpc.ReadyTimeout = defaults.RPC.ReadyTimeout
	}
	if rpc.ReadyAttempts == 0 {
		rpc.ReadyAttempts = defaults.RPC.ReadyAttempts
	}
	if rpc.ReadyBackoff == 0 {
		rpc.ReadyBackoff = defaults.RPC.ReadyBackoff
	}
	if rpc.CreateTimeout == 0 {
		rpc.CreateTimeout = defaults.RPC.CreateTimeout
	}
	if rpc.CreateAttempts == 0 {
		rpc.CreateAttempts = defaults.RPC.CreateAttempts
	}
	if rpc.CreateBackoff == 0 {
		rpc.CreateBackoff = defaults.RPC.CreateBackoff
	}
	if rpc.ResponseQueue == 0 {
		rpc.ResponseQueue = defaults.RPC.ResponseQueue
	}

	if cfg.Events.FlushInterval == 0 {
		cfg.Events.FlushInterval = defaults.Events.FlushInterval
	}
	if cfg.Events.MaxPayloadChars == 0 {
		cfg.Events.MaxPayloadChars = defaults.Events.MaxPayloadChars
	}
	if cfg.Events.HubCapacity == 0 {
		cfg.Events.HubCapacity = defaults.Events.HubCapacity
	}

	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API = defaults.API
	}

	if cfg.Settings.GlobalPath == "" {
		cfg.Settings.GlobalPath = defaults.Settings.GlobalPath
	}
	if cfg.Settings.ProjectSubpath == "" {
		cfg.Settings.ProjectSubpath = defaults.Settings.ProjectSubpath
	}

	return cfg
}

// expandPaths resolves a leading ~ in path-valued fields.
func expandPaths(cfg *Config) error {
	for _, p := range []*string{
		&cfg.Service.LogPath,
		&cfg.Sidecar.Binary,
		&cfg.Sidecar.Archive,
		&cfg.Sidecar.RuntimeDir,
		&cfg.Sidecar.Dir,
		&cfg.Settings.GlobalPath,
	} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.Sidecar.Archive != "" && cfg.Sidecar.RuntimeDir == "" {
		return fmt.Errorf("sidecar.runtime_dir is required when sidecar.archive is set")
	}
	if cfg.Sidecar.StopGrace < 0 {
		return fmt.Errorf("sidecar.stop_grace must not be negative")
	}

	if cfg.RPC.DefaultTimeout <= 0 || cfg.RPC.ReadyTimeout <= 0 || cfg.RPC.CreateTimeout <= 0 {
		return fmt.Errorf("rpc timeouts must be positive")
	}
	if cfg.RPC.ReadyAttempts < 1 || cfg.RPC.CreateAttempts < 1 {
		return fmt.Errorf("rpc attempts must be at least 1")
	}
	if cfg.RPC.ResponseQueue < 1 {
		return fmt.Errorf("rpc.response_queue must be at least 1")
	}

	if cfg.Events.FlushInterval <= 0 {
		return fmt.Errorf("events.flush_interval must be positive")
	}
	if cfg.Events.MaxPayloadChars < 1024 {
		return fmt.Errorf("events.max_payload_chars must be at least 1024 (got %d)", cfg.Events.MaxPayloadChars)
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api is enabled")
		}
		if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
			matches := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey)
			return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", matches[1])
		}
		for i, tok := range cfg.API.Auth.Tokens {
			if envVarPattern.MatchString(tok.Token) {
				matches := envVarPattern.FindStringSubmatch(tok.Token)
				return fmt.Errorf("api.auth.tokens[%d].token: environment variable ${%s} is not set", i, matches[1])
			}
			if strings.TrimSpace(tok.Token) == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is empty", i)
			}
		}
	}
	return nil
}
