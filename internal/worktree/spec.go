// Package worktree resolves per-run workspace identities and prepares the git
// worktree a run executes in.
//
// A run bound to an issue always resolves to the same key and branch, so
// repeated runs for that issue converge on one worktree. Unscoped runs derive
// their key from a caller-supplied seed, so concurrent unscoped runs land in
// distinct worktrees without any locking.
package worktree

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/project-agent/project-agent/internal/slug"
)

const (
	// DirName is the directory under the repository root holding managed worktrees.
	DirName = ".project-agent-worktrees"

	// BranchPrefix namespaces every branch created for a run.
	BranchPrefix = "project-agent-"

	// UnscopedPrefix marks keys of runs started without an issue identifier.
	UnscopedPrefix = "unscoped-"

	// GuardEnv is set by a relaunching parent and read by the child so the
	// child never relaunches again.
	GuardEnv = "PROJECT_AGENT_WORKTREE_BOOTSTRAPPED"

	// DisableEnv turns worktree bootstrapping off entirely.
	DisableEnv = "PROJECT_AGENT_DISABLE_WORKTREE"

	// SeedEnv carries the uniqueness seed for unscoped runs across a relaunch.
	SeedEnv = "PROJECT_AGENT_RUN_SEED"

	fallbackKey = "run"
)

// Spec identifies the worktree a run executes in.
type Spec struct {
	Key    string
	Branch string
}

// Sanitize turns an arbitrary value into a key that is safe as a path
// component and as part of a git ref name. Empty results become "run".
func Sanitize(value string) string {
	return slug.Make(value, fallbackKey)
}

// UnscopedKey derives the key of an unscoped run from its uniqueness seed.
func UnscopedKey(seed string) string {
	return UnscopedPrefix + Sanitize(seed)
}

// ResolveSpec maps an issue identifier to its worktree spec. The result for a
// non-empty issue identifier depends only on the trimmed identifier. An empty
// identifier yields an unscoped key derived from seed.
func ResolveSpec(issueID, seed string) Spec {
	var key string
	if trimmed := strings.TrimSpace(issueID); trimmed != "" {
		key = Sanitize(trimmed)
	} else {
		key = UnscopedKey(seed)
	}
	return Spec{Key: key, Branch: BranchPrefix + key}
}

// NewSeed returns a fresh uniqueness seed: a lower-case ULID for now with
// crypto entropy, suffixed with the process id.
func NewSeed(now time.Time, pid int) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	return fmt.Sprintf("%s-p%d", strings.ToLower(id.String()), pid)
}
