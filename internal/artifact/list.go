package artifact

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/project-agent/project-agent/internal/errors"
)

// RunSummary describes one run directory found under an artifacts root.
type RunSummary struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	RunKey    string `json:"runKey" yaml:"runKey"`
	Path      string `json:"path" yaml:"path"`
	// IssueID, Status and StartedAt are empty when the artifact fails the schema.
	IssueID   string `json:"issueId" yaml:"issueId"`
	Status    Status `json:"status" yaml:"status"`
	StartedAt string `json:"startedAt" yaml:"startedAt"`
	Report    Report `json:"report" yaml:"report"`
}

// ID is the "<namespace>/<runKey>" form matched by List patterns.
func (r RunSummary) ID() string {
	return r.Namespace + "/" + r.RunKey
}

// CompilePattern compiles a run pattern such as "acme/*" or "*/unscoped-*".
// "*" does not cross the namespace separator; "**" does. An empty pattern
// matches every run.
func CompilePattern(pattern string) (glob.Glob, error) {
	if pattern == "" {
		pattern = "**"
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.NewValidationError("invalid run pattern").
			WithField("match").
			WithValue(pattern).
			WithCause(err)
	}
	return g, nil
}

// List finds every <root>/<namespace>/<runKey>/run.json whose ID matches
// match (nil matches all) and checks each one. Results are sorted by ID.
// A missing root yields no runs.
func (s *Store) List(root string, match glob.Glob) ([]RunSummary, error) {
	if ok, err := afero.DirExists(s.fs, root); err != nil || !ok {
		return []RunSummary{}, nil
	}

	runs := []RunSummary{}
	pattern := filepath.Join(root, "*", "*", RunFileName)
	paths, err := afero.Glob(s.fs, pattern)
	if err != nil {
		return nil, errors.NewArtifactError("failed to scan artifacts root", err).WithPath(root)
	}

	for _, path := range paths {
		runDir := filepath.Dir(path)
		summary := RunSummary{
			Namespace: filepath.Base(filepath.Dir(runDir)),
			RunKey:    filepath.Base(runDir),
			Path:      path,
		}
		if match != nil && !match.Match(summary.ID()) {
			continue
		}

		raw, err := afero.ReadFile(s.fs, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.NewArtifactError("failed to read run artifact", err).WithPath(path)
		}

		summary.Report = Check(path, raw)
		if a, schemaErrs := Parse(raw); len(schemaErrs) == 0 {
			summary.IssueID = a.IssueID
			summary.Status = a.Status
			summary.StartedAt = a.StartedAt
		}
		runs = append(runs, summary)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].ID() < runs[j].ID() })
	return runs, nil
}

// Describe is a one-line rendering of r used by the runs command.
func (r RunSummary) Describe() string {
	state := string(r.Status)
	if state == "" {
		state = "invalid"
	}
	issue := r.IssueID
	if issue == "" {
		issue = "-"
	}
	verdict := "ok"
	if !r.Report.OK {
		verdict = fmt.Sprintf("%d problem(s)", len(r.Report.SchemaErrors)+len(r.Report.Violations))
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s", r.ID(), state, issue, verdict)
}
