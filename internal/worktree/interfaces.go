package worktree

import "context"

// Git is the subset of git the bootstrapper needs. CLIGit implements it with
// the git executable; tests substitute a fake.
type Git interface {
	// RepoRoot returns the absolute root of the main checkout containing dir.
	// It returns errors.ErrNotGitRepository when dir is not inside a work
	// tree and errors.ErrGitNotFound when git is not installed.
	RepoRoot(ctx context.Context, dir string) (string, error)

	// BranchExists reports whether refs/heads/<branch> exists.
	BranchExists(ctx context.Context, repoRoot, branch string) (bool, error)

	// AddWorktree checks out branch at path. When newBranch is true the
	// branch is created from HEAD.
	AddWorktree(ctx context.Context, repoRoot, path, branch string, newBranch bool) error
}

// CommandExecutor abstracts command execution so CLIGit can be tested
// without running git.
type CommandExecutor interface {
	// Run executes name with args in dir and returns stdout and stderr separately.
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// Compile-time interface checks.
var (
	_ Git             = (*CLIGit)(nil)
	_ CommandExecutor = (*CLICommandExecutor)(nil)
)
