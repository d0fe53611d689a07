// Package runs provides commands for inspecting run directories under the
// artifacts root.
package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/project-agent/project-agent/internal/artifact"
	"github.com/project-agent/project-agent/internal/config"
	"github.com/project-agent/project-agent/internal/errors"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect prepared runs",
	Long: `Inspect the run directories under the artifacts root.

Runs are identified as <namespace>/<run key>, for example acme/AG-1 or
acme/unscoped-01jq3v5m2k-p4242.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs and their validation state",
	Long: `List every run under the artifacts root with its status and
whether run.json currently passes validation.

--match filters by run id with glob syntax: "*" stays within one path
segment and "**" crosses them.

Examples:
  project-agent runs list
  project-agent runs list --match 'acme/*'
  project-agent runs list --match '*/unscoped-*' --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <namespace/run-key>",
	Short: "Show one run and every validation problem",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var (
	artifactsDir string
	matchPattern string
	listJSON     bool
	onlyInvalid  bool
	listShort    bool

	// fs and getwd are replaced in tests.
	fs    afero.Fs = afero.NewOsFs()
	getwd          = os.Getwd
)

func init() {
	runsCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts-dir", "", "root directory for run artifacts (default from config)")

	runsListCmd.Flags().StringVarP(&matchPattern, "match", "m", "", "only list runs whose id matches this glob")
	runsListCmd.Flags().BoolVar(&listJSON, "json", false, "Output runs as JSON")
	runsListCmd.Flags().BoolVar(&onlyInvalid, "invalid", false, "only list runs that fail validation")
	runsListCmd.Flags().BoolVarP(&listShort, "short", "s", false, "one line per run")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

// Register adds the runs commands to parent.
func Register(parent *cobra.Command) {
	parent.AddCommand(runsCmd)
}

// resolveRoot returns the artifacts root from the flag or configuration.
func resolveRoot() (string, error) {
	cwd, err := getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg := config.Get()
	if strings.TrimSpace(artifactsDir) != "" {
		cfg.ArtifactsDir = artifactsDir
	}
	return cfg.ResolveArtifactsDir(cwd), nil
}

func listRuns(match string) (string, []artifact.RunSummary, error) {
	root, err := resolveRoot()
	if err != nil {
		return "", nil, err
	}
	pattern, err := artifact.CompilePattern(match)
	if err != nil {
		return "", nil, err
	}
	runs, err := artifact.NewStore(fs).List(root, pattern)
	if err != nil {
		return "", nil, err
	}
	return root, runs, nil
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	root, runs, err := listRuns(matchPattern)
	if err != nil {
		return err
	}

	if onlyInvalid {
		failing := runs[:0]
		for _, r := range runs {
			if !r.Report.OK {
				failing = append(failing, r)
			}
		}
		runs = failing
	}

	if listJSON {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode runs: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if listShort {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, r := range runs {
			fmt.Fprintln(tw, r.Describe())
		}
		return tw.Flush()
	}

	fmt.Fprintln(out, strings.Repeat("─", 70))
	fmt.Fprintf(out, "Runs in %s\n", root)
	fmt.Fprintln(out, strings.Repeat("─", 70))

	if len(runs) == 0 {
		fmt.Fprintln(out, "\nNo runs found.")
		fmt.Fprintln(out, "Run 'project-agent <ISSUE_ID>' to prepare one.")
		return nil
	}

	fmt.Fprintf(out, "\nFound %d run(s):\n\n", len(runs))
	for _, r := range runs {
		printSummary(out, r)
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, strings.Repeat("─", 70))
	fmt.Fprintln(out, "\nTo see every problem in a run: project-agent runs show <run-id>")
	return nil
}

func printSummary(out io.Writer, r artifact.RunSummary) {
	status := string(r.Status)
	if status == "" {
		status = "(unreadable)"
	}
	issue := r.IssueID
	if issue == "" {
		issue = "(unscoped)"
	}
	check := "passes"
	if !r.Report.OK {
		check = fmt.Sprintf("%d problem(s)", len(r.Report.SchemaErrors)+len(r.Report.Violations))
	}

	fmt.Fprintf(out, "  Run: %s\n", r.ID())
	fmt.Fprintf(out, "    Issue:      %s\n", issue)
	fmt.Fprintf(out, "    Status:     %s\n", status)
	if r.StartedAt != "" {
		fmt.Fprintf(out, "    Started:    %s\n", r.StartedAt)
	}
	fmt.Fprintf(out, "    Validation: %s\n", check)
}

func runShow(cmd *cobra.Command, args []string) error {
	id := strings.Trim(strings.TrimSpace(args[0]), "/")
	if strings.Count(id, "/") != 1 || strings.ContainsAny(id, "*?[{") {
		return errors.NewValidationError("run id must look like <namespace>/<run key>").
			WithField("run").
			WithValue(args[0])
	}

	_, runs, err := listRuns(id)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return errors.NewNotFoundError("run", id).WithCause(errors.ErrArtifactNotFound)
	}

	out := cmd.OutOrStdout()
	r := runs[0]
	printSummary(out, r)
	fmt.Fprintf(out, "    Artifact:   %s\n", r.Path)

	for _, e := range r.Report.SchemaErrors {
		fmt.Fprintf(out, "    - schema: %s\n", e)
	}
	for _, v := range r.Report.Violations {
		fmt.Fprintf(out, "    - %s\n", v)
	}
	if !r.Report.OK {
		return errors.NewExitError(1)
	}
	return nil
}
