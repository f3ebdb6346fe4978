package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metrocollab/grouper/config"
)

// newRootCmd builds the command tree.
func newRootCmd(a *app) *cobra.Command {
	var (
		configFile string
		logLevel   string
		logFormat  string
	)

	root := &cobra.Command{
		Use:   "grouper",
		Short: "Distribute a class into balanced project groups",
		Long: `grouper clusters student questionnaires (skills, interests, availability,
weekly hours) into project groups whose sizes stay within the class bounds.

Configuration comes from environment variables, optionally on top of a YAML
file named by --config or GROUPER_CONFIG_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := os.Setenv(config.ConfigFileEnv, configFile); err != nil {
					return err
				}
			}
			return a.init(logLevel, logFormat)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console)")

	root.AddCommand(
		newPlanCmd(a),
		newSortCmd(a),
		newGenerateCmd(a),
		newServeCmd(a),
	)
	return root
}

// writeJSON prints v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// exactArgs is cobra.ExactArgs reporting a usageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
