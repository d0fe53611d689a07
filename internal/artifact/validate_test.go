package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// doneArtifact returns an artifact that satisfies every done rule.
func doneArtifact() *RunArtifact {
	a := New("AG-1", startedAt)
	a.Status = StatusDone
	a.EndedAt = "2026-02-28T01:00:00.000Z"
	a.Summary = "Implemented acceptance criteria."
	a.Linear.PlanCommentPosted = true
	a.Linear.ProgressCommentPosted = true
	a.Linear.DoneCommentPosted = true
	a.Linear.StateTransitionedTo = "Done"
	a.Tests.Commands = []string{"go test ./..."}
	a.Tests.Results = []TestResult{{Command: "go test ./...", ExitCode: 0}}
	a.Verification = []string{"Open the updated flow and confirm behavior."}
	a.Changes.PullRequestURL = "https://github.com/example/repo/pull/123"
	return a
}

func TestValidate_FreshArtifactPasses(t *testing.T) {
	for _, id := range []string{"AG-1", ""} {
		assert.Empty(t, Validate(New(id, startedAt)), "issue id %q", id)
	}
}

func TestValidate_DoneOnFreshUnscopedArtifact(t *testing.T) {
	a := New("", startedAt)
	a.Status = StatusDone

	assert.Equal(t, []string{
		"status=done requires issueId",
		"status=done requires linear.planCommentPosted=true",
		"status=done requires linear.progressCommentPosted=true",
		"status=done requires linear.doneCommentPosted=true",
		"status=done requires summary",
		"status=done requires at least one tests.results entry",
		"status=done requires at least one manual verification step",
		"status=done requires changes.pullRequestUrl",
		"status=done requires endedAt",
	}, Validate(a))
}

func TestValidate_DoneOnFreshIssueArtifact(t *testing.T) {
	// AG-1 marked done without any evidence.
	a := New("AG-1", startedAt)
	a.Status = StatusDone

	violations := Validate(a)
	assert.NotContains(t, violations, "status=done requires issueId")
	assert.Contains(t, violations, "status=done requires linear.planCommentPosted=true")
	assert.Contains(t, violations, "status=done requires endedAt")
	assert.Len(t, violations, 8)
}

func TestValidate_FullyPopulatedDonePasses(t *testing.T) {
	assert.Empty(t, Validate(doneArtifact()))
}

func TestValidate_DoneWithoutStateTransitionPasses(t *testing.T) {
	a := doneArtifact()
	a.Linear.StateTransitionedTo = ""
	assert.Empty(t, Validate(a))
}

func TestValidate_DoneSingleFieldFlips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *RunArtifact)
		want   string
	}{
		{"issue id blank", func(a *RunArtifact) { a.IssueID = "   " }, "status=done requires issueId"},
		{"plan comment", func(a *RunArtifact) { a.Linear.PlanCommentPosted = false }, "status=done requires linear.planCommentPosted=true"},
		{"progress comment", func(a *RunArtifact) { a.Linear.ProgressCommentPosted = false }, "status=done requires linear.progressCommentPosted=true"},
		{"done comment", func(a *RunArtifact) { a.Linear.DoneCommentPosted = false }, "status=done requires linear.doneCommentPosted=true"},
		{"summary whitespace", func(a *RunArtifact) { a.Summary = "\t\n" }, "status=done requires summary"},
		{"failing test", func(a *RunArtifact) {
			a.Tests.Results = append(a.Tests.Results, TestResult{Command: "make lint", ExitCode: 2})
		}, "status=done requires all tests.results exitCode values to be 0"},
		{"no verification", func(a *RunArtifact) { a.Verification = []string{} }, "status=done requires at least one manual verification step"},
		{"pull request blank", func(a *RunArtifact) { a.Changes.PullRequestURL = "  " }, "status=done requires changes.pullRequestUrl"},
		{"ended at missing", func(a *RunArtifact) { a.EndedAt = "" }, "status=done requires endedAt"},
		{"started at blank", func(a *RunArtifact) { a.StartedAt = " " }, "startedAt is required"},
		{"wrong version", func(a *RunArtifact) { a.Version = 2 }, "version must equal 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := doneArtifact()
			tt.mutate(a)
			assert.Equal(t, []string{tt.want}, Validate(a))
		})
	}
}

func TestValidate_NoTestResults(t *testing.T) {
	a := doneArtifact()
	a.Tests.Results = nil
	// An empty list has no failing exit codes, so only the presence rule fires.
	assert.Equal(t, []string{"status=done requires at least one tests.results entry"}, Validate(a))
}

func TestValidate_Blocked(t *testing.T) {
	t.Run("passes with blocker and end time", func(t *testing.T) {
		a := New("", startedAt)
		a.Status = StatusBlocked
		a.Blockers = []string{"waiting on API credentials"}
		a.EndedAt = "2026-02-28T02:00:00Z"
		assert.Empty(t, Validate(a))
	})

	t.Run("fails without blocker or end time", func(t *testing.T) {
		a := New("AG-1", startedAt)
		a.Status = StatusBlocked
		assert.Equal(t, []string{
			"status=blocked requires at least one blocker",
			"status=blocked requires endedAt",
		}, Validate(a))
	})

	t.Run("done gates do not apply", func(t *testing.T) {
		a := New("", startedAt)
		a.Status = StatusBlocked
		a.Blockers = []string{"x"}
		a.EndedAt = "2026-02-28T02:00:00Z"
		assert.NotContains(t, Validate(a), "status=done requires summary")
	})
}

func TestValidate_InProgressIgnoresCompletionFields(t *testing.T) {
	a := New("", startedAt)
	a.Tests.Results = []TestResult{{Command: "go test", ExitCode: 1}}
	assert.Empty(t, Validate(a))
}

func TestValidate_DoesNotMutate(t *testing.T) {
	a := New("", startedAt)
	a.Status = StatusDone
	before := *a
	Validate(a)
	assert.Equal(t, before, *a)
}

func TestCheck(t *testing.T) {
	t.Run("schema errors skip business rules", func(t *testing.T) {
		r := Check("run.json", []byte(`{"version": 2}`))
		assert.False(t, r.OK)
		assert.NotEmpty(t, r.SchemaErrors)
		assert.Empty(t, r.Violations)
		assert.Equal(t, "run.json", r.Path)
	})

	t.Run("violations", func(t *testing.T) {
		a := New("AG-1", startedAt)
		a.Status = StatusBlocked
		data, err := Encode(a)
		assert.NoError(t, err)

		r := Check("run.json", data)
		assert.False(t, r.OK)
		assert.Empty(t, r.SchemaErrors)
		assert.Len(t, r.Violations, 2)
	})

	t.Run("ok", func(t *testing.T) {
		data, err := Encode(doneArtifact())
		assert.NoError(t, err)

		r := Check("run.json", data)
		assert.True(t, r.OK)
		assert.NotNil(t, r.SchemaErrors)
		assert.NotNil(t, r.Violations)
	})
}
