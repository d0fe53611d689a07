// Package artifact defines the run artifact (run.json), the persisted record
// of a single run and the contract a run must satisfy before it counts as
// finished.
//
// The artifact is created once when a run starts, then edited by the agent
// while it works. Parse checks that a file has the right shape; Validate
// checks the completion rules for the artifact's status.
package artifact

import (
	"encoding/json"
	"time"
)

// Version is the only supported artifact schema version.
const Version = 1

// Status is the lifecycle state of a run.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// IsTerminal reports whether the status ends the run.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusBlocked
}

// Statuses lists every valid status in schema order.
func Statuses() []Status {
	return []Status{StatusInProgress, StatusDone, StatusBlocked}
}

// RunArtifact is the persisted record of one run.
type RunArtifact struct {
	Version      int      `json:"version"`
	IssueID      string   `json:"issueId"`
	StartedAt    string   `json:"startedAt"`
	EndedAt      string   `json:"endedAt,omitempty"`
	Status       Status   `json:"status"`
	Linear       Linear   `json:"linear"`
	Changes      Changes  `json:"changes"`
	Tests        Tests    `json:"tests"`
	Verification []string `json:"verification"`
	Summary      string   `json:"summary"`
	Blockers     []string `json:"blockers"`
}

// Linear records which issue-tracker updates the agent has posted.
type Linear struct {
	PlanCommentPosted     bool   `json:"planCommentPosted"`
	ProgressCommentPosted bool   `json:"progressCommentPosted"`
	DoneCommentPosted     bool   `json:"doneCommentPosted"`
	StateTransitionedTo   string `json:"stateTransitionedTo,omitempty"`
}

// Changes records the code changes made during the run.
type Changes struct {
	FilesTouched   []string `json:"filesTouched"`
	CommitShas     []string `json:"commitShas"`
	PullRequestURL string   `json:"pullRequestUrl"`
}

// Tests records the test commands run and their outcomes.
type Tests struct {
	Commands []string     `json:"commands"`
	Results  []TestResult `json:"results"`
}

// TestResult is the outcome of one test command.
type TestResult struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output,omitempty"`
}

// New returns the initial artifact for a run of issueID started at now.
// issueID may be empty for an unscoped run.
func New(issueID string, now time.Time) *RunArtifact {
	return &RunArtifact{
		Version:   Version,
		IssueID:   issueID,
		StartedAt: now.UTC().Format(time.RFC3339Nano),
		Status:    StatusInProgress,
		Changes: Changes{
			FilesTouched: []string{},
			CommitShas:   []string{},
		},
		Tests: Tests{
			Commands: []string{},
			Results:  []TestResult{},
		},
		Verification: []string{},
		Blockers:     []string{},
	}
}

// Encode renders the artifact as two-space indented JSON with a trailing
// newline. Nil slices are written as empty arrays.
func Encode(a *RunArtifact) ([]byte, error) {
	out := *a
	out.Changes.FilesTouched = nonNil(out.Changes.FilesTouched)
	out.Changes.CommitShas = nonNil(out.Changes.CommitShas)
	out.Tests.Commands = nonNil(out.Tests.Commands)
	if out.Tests.Results == nil {
		out.Tests.Results = []TestResult{}
	}
	out.Verification = nonNil(out.Verification)
	out.Blockers = nonNil(out.Blockers)

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
