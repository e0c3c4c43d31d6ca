package main

import (
	"github.com/spf13/cobra"

	"github.com/PriNova/graphone/internal/settings"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Read or change which models the worker offers",
	}
	cmd.AddCommand(newModelsGetCmd(root), newModelsSetCmd(root))
	return cmd
}

func openSettings(root *rootOptions) (*settings.Store, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(cfg.Settings)
}

func newModelsGetCmd(root *rootOptions) *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the effective enabledModels setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openSettings(root)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), store.Get(projectDir))
		},
	}
	cmd.Flags().StringVar(&projectDir, "project", "", "Project directory (default: current directory)")
	return cmd
}

func newModelsSetCmd(root *rootOptions) *cobra.Command {
	var (
		projectDir string
		scope      string
	)
	cmd := &cobra.Command{
		Use:   "set [pattern...]",
		Short: "Write enabledModels patterns; no patterns enables every model",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(root)
			if err != nil {
				return err
			}
			got, err := store.Set(args, scope, projectDir)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), got)
		},
	}
	cmd.Flags().StringVar(&projectDir, "project", "", "Project directory (default: current directory)")
	cmd.Flags().StringVar(&scope, "scope", settings.ScopeAuto, "Settings file to write: auto, project or global")
	return cmd
}
