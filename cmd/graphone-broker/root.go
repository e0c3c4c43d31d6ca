package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/log"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "graphone-broker",
		Short:         "Broker between the desktop UI and the agent worker process",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to config file (default: $"+config.ConfigEnv+", ~/.config/graphone/broker.yaml, ./graphone.yaml)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newDoctorCmd(opts),
		newModelsCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads the --config file, falling back to discovery and then to
// the built-in defaults.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.Discover()
	}
	return config.Load(path)
}

// setupLogging points the global logger at the configured log file, or at
// stderr when asked to. The returned func closes the file.
func setupLogging(cfg *config.Config) (func(), error) {
	if cfg.Service.LogStderr {
		log.Setup(cfg.Service.LogLevel)
		return func() {}, nil
	}
	path := log.ResolvePath(cfg.Service.LogPath)
	f, err := log.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	log.SetupWriter(cfg.Service.LogLevel, f)
	return func() { _ = f.Close() }, nil
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version,omitempty"`
}

func currentVersion() versionInfo {
	v := versionInfo{Version: version, Commit: gitCommit, BuildTime: buildDate}
	if info, ok := debug.ReadBuildInfo(); ok {
		v.GoVersion = info.GoVersion
	}
	return v
}

func newVersionCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := currentVersion()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "graphone-broker %s (commit %s, built %s)\n", v.Version, v.Commit, v.BuildTime)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output version metadata as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
