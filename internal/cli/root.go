package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/config"
	"github.com/roach88/storekit/internal/feature"
	"github.com/roach88/storekit/internal/harness"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Registry resolves scenario targets. Nil means feature.Registry().
	Registry *harness.Registry

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the storekit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storekit",
		Short: "storekit - unidirectional state containers",
		Long: `Run, validate and inspect scenarios against storekit feature stores.

Defaults come from STOREKIT_* environment variables; flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			_, err := opts.loadConfig()
			return err
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// config loads the environment configuration once.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.cfg != nil {
		return *o.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.cfg = &cfg
	return cfg, nil
}

// log returns the command logger, writing to w.
func (o *RootOptions) log(w io.Writer) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	cfg, err := o.loadConfig()
	if err != nil {
		cfg = config.Config{LogLevel: "warn"}
	}
	o.logger = cfg.Logger(w, o.Verbose)
	return o.logger
}

func (o *RootOptions) targets() *harness.Registry {
	if o.Registry == nil {
		o.Registry = feature.Registry()
	}
	return o.Registry
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
