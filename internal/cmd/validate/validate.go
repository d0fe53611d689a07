// Package validate provides the command that checks a run artifact against
// its schema and completion rules.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/project-agent/project-agent/internal/artifact"
	"github.com/project-agent/project-agent/internal/config"
	"github.com/project-agent/project-agent/internal/errors"
	"github.com/project-agent/project-agent/internal/logging"
	"github.com/project-agent/project-agent/internal/watch"
)

var validateCmd = &cobra.Command{
	Use:   "validate <run.json>",
	Short: "Validate a run artifact",
	Long: `Validate a run.json artifact against the run artifact schema and the
completion rules.

Schema errors are reported first; the completion rules are only checked once
the file is structurally valid. Every problem found is printed.

The exit code indicates the result:
  0 - Artifact is valid
  1 - Artifact could not be read, or has schema errors or rule violations

Examples:
  # Validate an artifact
  project-agent validate ~/.project-agent-artifacts/acme/AG-1/run.json

  # Machine-readable result
  project-agent validate --json run.json

  # Re-validate every time the agent saves the file
  project-agent validate --watch run.json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var (
	validateJSON  bool
	validateWatch bool

	// fs is replaced in tests.
	fs afero.Fs = afero.NewOsFs()
)

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output validation result as JSON")
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Re-validate whenever the file changes")
}

// Register adds the validate command to parent.
func Register(parent *cobra.Command) {
	parent.AddCommand(validateCmd)
}

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// printer writes results for one invocation.
type printer struct {
	stdout io.Writer
	stderr io.Writer
	json   bool
	styled bool
}

func newPrinter(cmd *cobra.Command, jsonOutput bool) printer {
	return printer{
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		json:   jsonOutput,
		styled: !jsonOutput && isTerminal(cmd.OutOrStdout()),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := strings.TrimSpace(args[0])
	if path == "" {
		return errors.NewValidationError("run artifact path is required").WithField("path")
	}

	p := newPrinter(cmd, validateJSON)
	logger := openLogger(cmd)
	defer logger.Close()
	logger = logger.WithPhase("validate").With("path", path)

	if !validateWatch {
		return check(p, logger, path)
	}
	return watchAndCheck(cmd.Context(), p, logger, path)
}

// check validates path once and reports the result.
func check(p printer, logger *logging.Logger, path string) error {
	store := artifact.NewStore(fs)
	raw, err := store.ReadRaw(path)
	if err != nil {
		logger.Warn("artifact read failed", "error", err)
		if p.json {
			return p.printJSON(artifact.Report{
				Path:         path,
				SchemaErrors: []string{fmt.Sprintf("$: failed to read artifact JSON: %v", err)},
				Violations:   []string{},
			})
		}
		fmt.Fprintf(p.stderr, "Failed to read artifact JSON: %v\n", err)
		return errors.NewExitError(1)
	}

	report := artifact.Check(path, raw)
	logger.Info("artifact checked",
		"ok", report.OK,
		"schema_errors", len(report.SchemaErrors),
		"violations", len(report.Violations),
	)

	if p.json {
		return p.printJSON(report)
	}
	return p.printText(report)
}

func (p printer) printText(r artifact.Report) error {
	switch {
	case len(r.SchemaErrors) > 0:
		p.printProblems("Run artifact schema validation failed:", r.SchemaErrors)
	case len(r.Violations) > 0:
		p.printProblems("Run artifact validation failed:", r.Violations)
	default:
		fmt.Fprintln(p.stdout, p.style(passStyle, "Run artifact validation passed."))
		return nil
	}
	return errors.NewExitError(1)
}

func (p printer) printProblems(header string, problems []string) {
	fmt.Fprintln(p.stderr, p.style(failStyle, header))
	for _, problem := range problems {
		fmt.Fprintf(p.stderr, "- %s\n", p.style(detailStyle, problem))
	}
}

// printJSON prints the report and returns an exit error when it failed.
func (p printer) printJSON(r artifact.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		fmt.Fprintf(p.stdout, "{\"path\": %q, \"ok\": false, \"schemaErrors\": [%q]}\n",
			r.Path, "internal error: "+err.Error())
		return errors.NewExitError(1)
	}
	fmt.Fprintln(p.stdout, string(data))
	if !r.OK {
		return errors.NewExitError(1)
	}
	return nil
}

// watchAndCheck validates path now and after every change until ctx is
// cancelled. The exit status reflects the last check.
func watchAndCheck(ctx context.Context, p printer, logger *logging.Logger, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := watch.New(path, config.Get().Validation.WatchDebounce(), logger)
	if err != nil {
		return errors.Wrapf(err, "failed to watch %s", path)
	}
	defer func() { _ = w.Close() }()

	last := check(p, logger, path)
	if !p.json {
		fmt.Fprintln(p.stderr, p.style(detailStyle, "Watching "+w.Path()+" for changes. Press Ctrl-C to stop."))
	}

	err = w.Run(ctx, func() {
		if !p.json {
			fmt.Fprintln(p.stdout)
		}
		last = check(p, logger, path)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return last
}

// openLogger opens the debug log under the configured artifacts directory.
func openLogger(cmd *cobra.Command) *logging.Logger {
	cfg := config.Get()
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return logging.NopLogger()
	}
	logger, err := logging.NewLogger(cfg.ResolveArtifactsDir(cwd), cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: debug logging disabled: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}
