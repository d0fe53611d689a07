package worktree

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/project-agent/project-agent/internal/errors"
)

// -----------------------------------------------------------------------------
// Command Executor
// -----------------------------------------------------------------------------

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and captures stdout and stderr separately.
func (e *CLICommandExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// -----------------------------------------------------------------------------
// CLIGit
// -----------------------------------------------------------------------------

// CLIGit implements Git by shelling out to the git executable.
type CLIGit struct {
	executor CommandExecutor
}

// NewCLIGit creates a CLIGit backed by os/exec.
func NewCLIGit() *CLIGit {
	return &CLIGit{executor: NewCLICommandExecutor()}
}

// NewCLIGitWithExecutor creates a CLIGit with a custom executor.
// This is primarily useful for testing.
func NewCLIGitWithExecutor(executor CommandExecutor) *CLIGit {
	return &CLIGit{executor: executor}
}

// RepoRoot returns the root of the main checkout for dir. From inside a
// linked worktree this is the checkout that owns the worktree, not the
// worktree itself.
func (g *CLIGit) RepoRoot(ctx context.Context, dir string) (string, error) {
	stdout, stderr, err := g.executor.Run(ctx, dir, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		if isExecutableMissing(err) {
			return "", errors.ErrGitNotFound
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s", errors.ErrNotGitRepository, outputDetails(stderr, stdout))
	}

	topLevel := strings.TrimSpace(string(stdout))
	if topLevel == "" {
		return "", errors.ErrNotGitRepository
	}

	// Older git without --path-format keeps the top level.
	stdout, _, err = g.executor.Run(ctx, dir, "git", "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		return filepath.Clean(topLevel), nil
	}
	commonDir := strings.TrimSpace(string(stdout))
	if commonDir == "" || !filepath.IsAbs(commonDir) || filepath.Base(commonDir) != ".git" {
		return filepath.Clean(topLevel), nil
	}
	return filepath.Dir(commonDir), nil
}

// BranchExists reports whether a local branch exists.
func (g *CLIGit) BranchExists(ctx context.Context, repoRoot, branch string) (bool, error) {
	_, stderr, err := g.executor.Run(ctx, repoRoot, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	if isExecutableMissing(err) {
		return false, errors.ErrGitNotFound
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, errors.NewGitError("failed to look up branch", err).
		WithBranch(branch).
		WithRepository(repoRoot).
		WithGitOutput(strings.TrimSpace(string(stderr)))
}

// AddWorktree runs `git worktree add` from repoRoot. A failure is returned as
// a *errors.GitError carrying git's own output.
func (g *CLIGit) AddWorktree(ctx context.Context, repoRoot, path, branch string, newBranch bool) error {
	args := []string{"worktree", "add", path, branch}
	if newBranch {
		args = []string{"worktree", "add", "-b", branch, path, "HEAD"}
	}

	stdout, stderr, err := g.executor.Run(ctx, repoRoot, "git", args...)
	if err == nil {
		return nil
	}

	cause := errors.ErrWorktreeCreate
	if isExecutableMissing(err) {
		cause = errors.ErrGitNotFound
	} else if ctx.Err() != nil {
		cause = ctx.Err()
	}
	return errors.NewGitError(fmt.Sprintf("failed to prepare git worktree at %s", path), cause).
		WithBranch(branch).
		WithWorktree(path).
		WithRepository(repoRoot).
		WithGitOutput(outputDetails(stderr, stdout))
}

// outputDetails picks the most useful diagnostic from a failed command.
func outputDetails(stderr, stdout []byte) string {
	if s := strings.TrimSpace(string(stderr)); s != "" {
		return s
	}
	if s := strings.TrimSpace(string(stdout)); s != "" {
		return s
	}
	return "unknown error"
}

func isExecutableMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
