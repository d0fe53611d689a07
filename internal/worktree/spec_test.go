package worktree

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"punctuation and spacing", "  BRI 32 / Hot Fix  ", "bri-32-hot-fix"},
		{"issue id", "AG-1", "ag-1"},
		{"already clean", "feature_x.2", "feature_x.2"},
		{"only separators", " // ", "run"},
		{"empty", "", "run"},
		{"leading dot", ".hidden", "hidden"},
		{"parent reference", "..", "run"},
		{"ref-breaking double dot", "a..b", "a.b"},
		{"ref-breaking lock suffix", "AG-1.lock", "ag-1-lock"},
		{"fullwidth issue id", "ＡＧ－１", "ag-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"  BRI 32 / Hot Fix  ", "AG-1", "--x--", "a..b", "AG-1.lock", "ＡＧ－１", "Ünïcödé ／ key", ""}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestResolveSpec(t *testing.T) {
	t.Run("deterministic for an issue id", func(t *testing.T) {
		first := ResolveSpec("BRI-32", "seed-a")
		second := ResolveSpec("BRI-32", "seed-b")
		assert.Equal(t, first, second)
		assert.Equal(t, Spec{Key: "bri-32", Branch: "project-agent-bri-32"}, first)
	})

	t.Run("issue id is trimmed", func(t *testing.T) {
		assert.Equal(t, ResolveSpec("AG-1", ""), ResolveSpec("  AG-1\t", ""))
	})

	t.Run("lock suffix never reaches the branch", func(t *testing.T) {
		spec := ResolveSpec("AG-1.lock", "")
		assert.Equal(t, "project-agent-ag-1-lock", spec.Branch)
		assert.False(t, strings.HasSuffix(spec.Branch, ".lock"))
	})

	t.Run("unscoped uses the seed", func(t *testing.T) {
		spec := ResolveSpec("", "abc123")
		assert.Equal(t, "unscoped-abc123", spec.Key)
		assert.Equal(t, "project-agent-unscoped-abc123", spec.Branch)
	})

	t.Run("whitespace-only issue id is unscoped", func(t *testing.T) {
		assert.Equal(t, "unscoped-s1", ResolveSpec("   ", "s1").Key)
	})

	t.Run("identical seeds give identical specs", func(t *testing.T) {
		assert.Equal(t, ResolveSpec("", "2026-10-18T09-00-00-000z-p42"), ResolveSpec("", "2026-10-18T09-00-00-000z-p42"))
	})

	t.Run("distinct slugs give distinct keys", func(t *testing.T) {
		ids := []string{"AG-1", "AG-2", "BRI-32", "bri 33"}
		seen := map[string]string{}
		for _, id := range ids {
			spec := ResolveSpec(id, "")
			if prev, ok := seen[spec.Key]; ok {
				t.Fatalf("key %q produced by both %q and %q", spec.Key, prev, id)
			}
			seen[spec.Key] = id
		}
	})

	t.Run("branch always carries the prefix", func(t *testing.T) {
		for _, id := range []string{"AG-1", "", "///"} {
			spec := ResolveSpec(id, "x")
			assert.Equal(t, BranchPrefix+spec.Key, spec.Branch)
		}
	})
}

func TestUnscopedKey(t *testing.T) {
	assert.Equal(t, "unscoped-550e8400-e29b-41d4-a716-446655440000", UnscopedKey("550e8400-e29b-41d4-a716-446655440000"))
	assert.Equal(t, "unscoped-run", UnscopedKey(""))
}

func TestNewSeed(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	first := NewSeed(now, 4242)
	second := NewSeed(now, 4242)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(first, "-p4242"), "seed %q", first)
	assert.Equal(t, strings.ToLower(first), first)
	require.Len(t, strings.TrimSuffix(first, "-p4242"), 26)
	// A seed is already a valid key body.
	assert.Equal(t, first, Sanitize(first))
}
