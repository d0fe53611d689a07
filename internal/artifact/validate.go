package artifact

import "strings"

// Validate applies the completion rules for a's status and returns every
// violated rule as a fixed message. It does not modify a. An in-progress
// artifact only needs a version and a start time; done and blocked runs must
// carry the evidence that closes them out.
func Validate(a *RunArtifact) []string {
	var violations []string
	fail := func(msg string) {
		violations = append(violations, msg)
	}

	if a.Version != Version {
		fail("version must equal 1")
	}
	if blank(a.StartedAt) {
		fail("startedAt is required")
	}

	switch a.Status {
	case StatusDone:
		if blank(a.IssueID) {
			fail("status=done requires issueId")
		}
		if !a.Linear.PlanCommentPosted {
			fail("status=done requires linear.planCommentPosted=true")
		}
		if !a.Linear.ProgressCommentPosted {
			fail("status=done requires linear.progressCommentPosted=true")
		}
		if !a.Linear.DoneCommentPosted {
			fail("status=done requires linear.doneCommentPosted=true")
		}
		if blank(a.Summary) {
			fail("status=done requires summary")
		}
		if len(a.Tests.Results) == 0 {
			fail("status=done requires at least one tests.results entry")
		}
		if anyFailed(a.Tests.Results) {
			fail("status=done requires all tests.results exitCode values to be 0")
		}
		if len(a.Verification) == 0 {
			fail("status=done requires at least one manual verification step")
		}
		if blank(a.Changes.PullRequestURL) {
			fail("status=done requires changes.pullRequestUrl")
		}
		if blank(a.EndedAt) {
			fail("status=done requires endedAt")
		}
	case StatusBlocked:
		if len(a.Blockers) == 0 {
			fail("status=blocked requires at least one blocker")
		}
		if blank(a.EndedAt) {
			fail("status=blocked requires endedAt")
		}
	}

	return violations
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func anyFailed(results []TestResult) bool {
	for _, r := range results {
		if r.ExitCode != 0 {
			return true
		}
	}
	return false
}
