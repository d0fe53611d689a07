package worktree

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-agent/project-agent/internal/errors"
)

type response struct {
	stdout string
	stderr string
	err    error
}

// scriptedExecutor answers commands by their joined arguments and records
// every invocation.
type scriptedExecutor struct {
	responses map[string]response
	calls     []string
}

func (s *scriptedExecutor) Run(_ context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	key := strings.Join(args, " ")
	s.calls = append(s.calls, name+" "+key)
	r, ok := s.responses[key]
	if !ok {
		return nil, []byte("unexpected command: " + key), &exec.ExitError{}
	}
	return []byte(r.stdout), []byte(r.stderr), r.err
}

const (
	showTopLevel = "rev-parse --show-toplevel"
	commonDir    = "rev-parse --path-format=absolute --git-common-dir"
)

func TestCLIGit_RepoRoot(t *testing.T) {
	tests := []struct {
		name      string
		responses map[string]response
		want      string
		wantErr   error
	}{
		{
			name: "main checkout",
			responses: map[string]response{
				showTopLevel: {stdout: "/repo\n"},
				commonDir:    {stdout: "/repo/.git\n"},
			},
			want: "/repo",
		},
		{
			name: "linked worktree maps to main checkout",
			responses: map[string]response{
				showTopLevel: {stdout: "/repo/.project-agent-worktrees/ag-1\n"},
				commonDir:    {stdout: "/repo/.git\n"},
			},
			want: "/repo",
		},
		{
			name: "git without path-format keeps top level",
			responses: map[string]response{
				showTopLevel: {stdout: "/repo\n"},
			},
			want: "/repo",
		},
		{
			name: "separate git dir keeps top level",
			responses: map[string]response{
				showTopLevel: {stdout: "/repo\n"},
				commonDir:    {stdout: "/srv/git/repo.git\n"},
			},
			want: "/repo",
		},
		{
			name: "not a repository",
			responses: map[string]response{
				showTopLevel: {stderr: "fatal: not a git repository", err: &exec.ExitError{}},
			},
			wantErr: errors.ErrNotGitRepository,
		},
		{
			name: "git missing",
			responses: map[string]response{
				showTopLevel: {err: &exec.Error{Name: "git", Err: exec.ErrNotFound}},
			},
			wantErr: errors.ErrGitNotFound,
		},
		{
			name: "empty output",
			responses: map[string]response{
				showTopLevel: {stdout: "\n"},
			},
			wantErr: errors.ErrNotGitRepository,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewCLIGitWithExecutor(&scriptedExecutor{responses: tt.responses})

			got, err := g.RepoRoot(context.Background(), "/anywhere")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCLIGit_BranchExists(t *testing.T) {
	const ref = "show-ref --verify --quiet refs/heads/project-agent-ag-1"

	t.Run("present", func(t *testing.T) {
		g := NewCLIGitWithExecutor(&scriptedExecutor{responses: map[string]response{ref: {}}})
		exists, err := g.BranchExists(context.Background(), "/repo", "project-agent-ag-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("absent", func(t *testing.T) {
		g := NewCLIGitWithExecutor(&scriptedExecutor{responses: map[string]response{ref: {err: &exec.ExitError{}}}})
		exists, err := g.BranchExists(context.Background(), "/repo", "project-agent-ag-1")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("git missing", func(t *testing.T) {
		g := NewCLIGitWithExecutor(&scriptedExecutor{responses: map[string]response{
			ref: {err: &exec.Error{Name: "git", Err: exec.ErrNotFound}},
		}})
		_, err := g.BranchExists(context.Background(), "/repo", "project-agent-ag-1")
		assert.ErrorIs(t, err, errors.ErrGitNotFound)
	})
}

func TestCLIGit_AddWorktree(t *testing.T) {
	const path = "/repo/.project-agent-worktrees/ag-1"

	t.Run("new branch from HEAD", func(t *testing.T) {
		ex := &scriptedExecutor{responses: map[string]response{
			"worktree add -b project-agent-ag-1 " + path + " HEAD": {},
		}}
		g := NewCLIGitWithExecutor(ex)

		require.NoError(t, g.AddWorktree(context.Background(), "/repo", path, "project-agent-ag-1", true))
		assert.Equal(t, []string{"git worktree add -b project-agent-ag-1 " + path + " HEAD"}, ex.calls)
	})

	t.Run("existing branch", func(t *testing.T) {
		ex := &scriptedExecutor{responses: map[string]response{
			"worktree add " + path + " project-agent-ag-1": {},
		}}
		g := NewCLIGitWithExecutor(ex)

		require.NoError(t, g.AddWorktree(context.Background(), "/repo", path, "project-agent-ag-1", false))
	})

	failures := []struct {
		name       string
		resp       response
		wantOutput string
	}{
		{"stderr preferred", response{stdout: "noise", stderr: "fatal: already exists\n", err: &exec.ExitError{}}, "fatal: already exists"},
		{"stdout fallback", response{stdout: "  Preparing worktree\n", err: &exec.ExitError{}}, "Preparing worktree"},
		{"no output", response{err: &exec.ExitError{}}, "unknown error"},
	}
	for _, tt := range failures {
		t.Run("failure "+tt.name, func(t *testing.T) {
			g := NewCLIGitWithExecutor(&scriptedExecutor{responses: map[string]response{
				"worktree add -b project-agent-ag-1 " + path + " HEAD": tt.resp,
			}})

			err := g.AddWorktree(context.Background(), "/repo", path, "project-agent-ag-1", true)
			require.Error(t, err)

			var gitErr *errors.GitError
			require.ErrorAs(t, err, &gitErr)
			assert.Equal(t, tt.wantOutput, gitErr.GitOutput)
			assert.Equal(t, path, gitErr.Worktree)
			assert.Equal(t, "project-agent-ag-1", gitErr.Branch)
			assert.Contains(t, err.Error(), "failed to prepare git worktree at "+path)
			assert.ErrorIs(t, err, errors.ErrWorktreeCreate)
		})
	}
}
