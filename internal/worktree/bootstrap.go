package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/project-agent/project-agent/internal/errors"
	"github.com/project-agent/project-agent/internal/logging"
)

// Result is the bootstrap decision. It is one of Skipped, AlreadyInTarget or
// Relaunch; callers type-switch on it.
type Result interface {
	// Action names the decision for logs and messages.
	Action() string
	isResult()
}

// Skipped means the run continues in place without a managed worktree.
type Skipped struct {
	Reason string
}

// AlreadyInTarget means the process already runs inside its managed worktree.
type AlreadyInTarget struct {
	Path   string
	Branch string
}

// Relaunch means the caller must re-execute itself inside Path. Created
// reports whether this call created the worktree.
type Relaunch struct {
	Path    string
	Branch  string
	Created bool
}

func (Skipped) Action() string         { return "skipped" }
func (AlreadyInTarget) Action() string { return "already-in-target" }
func (Relaunch) Action() string        { return "relaunch" }

func (Skipped) isResult()         {}
func (AlreadyInTarget) isResult() {}
func (Relaunch) isResult()        {}

// BootstrapOptions carries the process-level inputs of a bootstrap decision.
type BootstrapOptions struct {
	// Disabled turns bootstrapping off.
	Disabled bool
	// Guarded is true in a process that was itself relaunched.
	Guarded bool
	// Seed is the uniqueness seed for unscoped runs. When empty a fresh
	// seed is generated per call.
	Seed string
}

// Bootstrapper decides whether a run needs its own worktree and prepares it.
type Bootstrapper struct {
	git    Git
	opts   BootstrapOptions
	logger *logging.Logger
}

// NewBootstrapper creates a Bootstrapper. A nil logger discards output.
func NewBootstrapper(git Git, opts BootstrapOptions, logger *logging.Logger) *Bootstrapper {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bootstrapper{
		git:    git,
		opts:   opts,
		logger: logger.WithPhase("bootstrap"),
	}
}

// EnsureWorkspace returns the bootstrap decision for a run of issueID started
// in cwd, creating the worktree when it does not exist yet.
//
// Environment problems (not a repository, git missing) produce Skipped. A
// failed `git worktree add` is returned as an error.
func (b *Bootstrapper) EnsureWorkspace(ctx context.Context, cwd, issueID string) (Result, error) {
	if b.opts.Disabled {
		return b.skip(fmt.Sprintf("worktree bootstrap disabled (%s)", DisableEnv)), nil
	}
	if b.opts.Guarded {
		return b.skip(fmt.Sprintf("already relaunched (%s)", GuardEnv)), nil
	}

	root, err := b.git.RepoRoot(ctx, cwd)
	switch {
	case errors.Is(err, errors.ErrGitNotFound):
		return b.skip("git executable not found on PATH"), nil
	case errors.Is(err, errors.ErrNotGitRepository):
		return b.skip("not inside a git worktree"), nil
	case err != nil:
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}

	seed := b.opts.Seed
	if seed == "" {
		seed = NewSeed(time.Now(), os.Getpid())
	}
	spec := ResolveSpec(issueID, seed)
	target := filepath.Join(root, DirName, spec.Key)
	logger := b.logger.With("issue_id", issueID, "worktree", target, "branch", spec.Branch)

	if samePath(cwd, target) {
		logger.Info("already in managed worktree")
		return AlreadyInTarget{Path: target, Branch: spec.Branch}, nil
	}

	created, err := b.ensureWorktree(ctx, root, target, spec.Branch)
	if err != nil {
		logger.Error("worktree preparation failed", "error", err.Error())
		return nil, err
	}

	logger.Info("relaunching in worktree", "created", created)
	return Relaunch{Path: target, Branch: spec.Branch, Created: created}, nil
}

func (b *Bootstrapper) skip(reason string) Skipped {
	b.logger.Info("worktree bootstrap skipped", "reason", reason)
	return Skipped{Reason: reason}
}

// ensureWorktree creates the worktree at target unless something already
// exists there. It reports whether it created one.
func (b *Bootstrapper) ensureWorktree(ctx context.Context, root, target, branch string) (bool, error) {
	if _, err := os.Stat(target); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return false, errors.NewGitError("failed to create worktree directory", err).
			WithWorktree(target).
			WithRepository(root)
	}

	exists, err := b.git.BranchExists(ctx, root, branch)
	if err != nil {
		return false, err
	}
	if err := b.git.AddWorktree(ctx, root, target, branch, !exists); err != nil {
		return false, err
	}
	return true, nil
}

// samePath compares two paths after making them absolute, resolving symlinks
// for paths that exist.
func samePath(a, b string) bool {
	return resolvePath(a) == resolvePath(b)
}

func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	if _, err := os.Stat(abs); err != nil {
		return abs
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
