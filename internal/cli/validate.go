package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/harness"
)

// ValidationError describes one invalid scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario YAML files against the scenario schema and check that
each names a registered target and only known fields.

Faster than test for editing feedback: no store is started.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		msg := fmt.Sprintf("scenarios directory not found: %s", scenariosDir)
		if err := formatter.Error(ErrCodeNotFound, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, msg)
	}

	result, err := ValidateScenariosDir(scenariosDir, opts.targets(), formatter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ %d scenario(s) valid", result.Files))
}

// ValidateScenariosDir validates every scenario under dir.
func ValidateScenariosDir(dir string, registry *harness.Registry, formatter *OutputFormatter) (ValidationResult, error) {
	files, err := findScenarioFiles(dir, "")
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, file := range files {
		if formatter != nil {
			formatter.VerboseLog("Validating %s", file)
		}
		if verr := validateScenarioFile(file, registry); verr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *verr)
		}
	}
	return result, nil
}

func validateScenarioFile(file string, registry *harness.Registry) *ValidationError {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		verr := &ValidationError{File: file, Message: err.Error()}
		var se *harness.SchemaError
		if errors.As(err, &se) {
			verr.Message = se.Message
			if se.Pos.IsValid() {
				verr.Line = se.Pos.Line()
				verr.Column = se.Pos.Column()
			}
		}
		return verr
	}

	if _, ok := registry.Lookup(scenario.Target); !ok {
		return &ValidationError{
			File:    file,
			Message: fmt.Sprintf("unknown target %q (registered: %v)", scenario.Target, registry.Names()),
		}
	}
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	msg := fmt.Sprintf("%d of %d scenario(s) invalid", len(result.Errors), result.Files)

	if formatter.JSON() {
		if err := formatter.Failure(ErrCodeInvalid, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := formatter.Writer
	for _, e := range result.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "✗ %s:%d:%d: %s\n", e.File, e.Line, e.Column, e.Message)
		} else {
			fmt.Fprintf(w, "✗ %s: %s\n", e.File, e.Message)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, msg)
	return NewExitError(ExitFailure, msg)
}
