package config

import "time"

// Config represents the complete graphone broker configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Sidecar  SidecarConfig  `yaml:"sidecar"`
	RPC      RPCConfig      `yaml:"rpc"`
	Events   EventsConfig   `yaml:"events"`
	API      APIConfig      `yaml:"api,omitempty"`
	Settings SettingsConfig `yaml:"settings"`

	// SourcePath is the file the config was loaded from, empty for defaults.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	// LogPath is the log file. Empty resolves via $GRAPHONE_LOG_PATH, then the temp dir.
	LogPath string `yaml:"log_path"`
	// LogStderr sends logs to stderr instead of the log file.
	LogStderr bool `yaml:"log_stderr"`
}

// SidecarConfig defines how the worker process is located and launched.
type SidecarConfig struct {
	// Binary is the worker executable. Used as-is when Archive is empty.
	Binary string `yaml:"binary"`
	// Archive is an optional gzip-compressed worker binary staged into RuntimeDir.
	Archive    string            `yaml:"archive,omitempty"`
	RuntimeDir string            `yaml:"runtime_dir,omitempty"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env,omitempty"`
	Dir        string            `yaml:"dir,omitempty"`
	StopGrace  time.Duration     `yaml:"stop_grace"`
	// MaxFrameBytes caps a single stdout JSON object.
	MaxFrameBytes int `yaml:"max_frame_bytes"`
}

// RPCConfig defines request/response timing.
type RPCConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	ReadyTimeout   time.Duration `yaml:"ready_timeout"`
	ReadyAttempts  int           `yaml:"ready_attempts"`
	ReadyBackoff   time.Duration `yaml:"ready_backoff"`
	CreateTimeout  time.Duration `yaml:"create_timeout"`
	CreateAttempts int           `yaml:"create_attempts"`
	CreateBackoff  time.Duration `yaml:"create_backoff"`
	ResponseQueue  int           `yaml:"response_queue"`
}

// EventsConfig defines UI event compaction and delivery.
type EventsConfig struct {
	FlushInterval   time.Duration `yaml:"flush_interval"`
	MaxPayloadChars int           `yaml:"max_payload_chars"`
	HubCapacity     int           `yaml:"hub_capacity"`
}

// APIConfig defines the HTTP bridge the UI connects to.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the single admin bearer token.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// SettingsConfig locates the worker's settings files.
type SettingsConfig struct {
	// GlobalPath defaults to ~/.pi/agent/settings.json.
	GlobalPath string `yaml:"global_path"`
	// ProjectSubpath is joined to a project directory, default .pi/settings.json.
	ProjectSubpath string `yaml:"project_subpath"`
}

// Defaults returns a Config matching the desktop app's built-in behavior.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "graphone-broker",
			LogLevel: "info",
		},
		Sidecar: SidecarConfig{
			Binary:        "pi-agent",
			Args:          []string{"--mode", "rpc", "--no-session"},
			StopGrace:     5 * time.Second,
			MaxFrameBytes: 8 << 20,
		},
		RPC: RPCConfig{
			DefaultTimeout: 5 * time.Second,
			ReadyTimeout:   20 * time.Second,
			ReadyAttempts:  3,
			ReadyBackoff:   500 * time.Millisecond,
			CreateTimeout:  20 * time.Second,
			CreateAttempts: 3,
			CreateBackoff:  600 * time.Millisecond,
			ResponseQueue:  100,
		},
		Events: EventsConfig{
			FlushInterval:   16 * time.Millisecond,
			MaxPayloadChars: 60_000,
			HubCapacity:     256,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:7433",
		},
		Settings: SettingsConfig{
			GlobalPath:     "~/.pi/agent/settings.json",
			ProjectSubpath: ".pi/settings.json",
		},
	}
}
