package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/cli"
	"mercator-hq/pulse/pkg/config"
)

type validationResult struct {
	Config string             `json:"config"`
	Valid  bool               `json:"valid"`
	Errors []*cli.ConfigError `json:"errors,omitempty"`
}

func (r validationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("%s: configuration valid", r.Config)
	}
	lines := make([]string, 0, len(r.Errors)+1)
	lines = append(lines, fmt.Sprintf("%s: %d problem(s)", r.Config, len(r.Errors)))
	for _, e := range r.Errors {
		lines = append(lines, "  "+e.Error())
	}
	return strings.Join(lines, "\n")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and PULSE_* environment
overrides, and report every invalid field.

Examples:
  # Validate a config file
  pulse validate --config /etc/pulse/config.yaml

  # Machine-readable result
  pulse validate --config config.yaml --output json`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	name := cfgFile
	if name == "" {
		name = "(defaults)"
	}
	result := validationResult{Config: name, Valid: true}

	if _, err := config.LoadConfigWithEnvOverrides(cfgFile); err != nil {
		fields := cli.ConfigErrors(err)
		if len(fields) == 0 {
			// Unreadable or malformed file.
			return cli.NewCommandError("validate", err)
		}
		result.Valid = false
		result.Errors = fields
	}

	if err := f.FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Valid {
		return cli.NewConfigError(name, "validation failed")
	}
	return nil
}
