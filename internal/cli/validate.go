package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/config"
)

// ConfigReport is the validate-config result.
type ConfigReport struct {
	Path   string                  `json:"path"`
	Valid  bool                    `json:"valid"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

func (r ConfigReport) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s is valid", r.Path)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s has %d error(s)", r.Path, len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s", e.Error())
	}
	return b.String()
}

// NewValidateConfigCommand creates the validate-config command.
func NewValidateConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [file]",
		Short: "Check a configuration against the schema",
		Long: `Load a configuration the same way "run" does (.env, YAML, CARTSYNC_*
environment) and check it against the configuration schema.

Exit codes:
  0 - configuration is valid
  1 - configuration violates the schema
  2 - the file could not be read or parsed

Examples:
  cartsync validate-config cartsync.yaml
  cartsync --config cartsync.yaml validate-config --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return validateConfig(rootOpts, path, cmd)
		},
	}
}

func validateConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	report := ConfigReport{Path: path, Valid: true}
	if path == "" {
		report.Path = "(defaults)"
	}

	_, err := config.Load(path, opts.EnvFile)
	var verrs config.ValidationErrors
	switch {
	case err == nil:
		return out.Success(report)
	case errors.As(err, &verrs):
		report.Valid = false
		report.Errors = verrs
		if ferr := out.Success(report); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, "configuration is invalid")
	default:
		_ = out.Error("E_CONFIG", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
}
