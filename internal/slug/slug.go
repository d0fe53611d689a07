// Package slug turns free-form identifiers into filesystem- and git-ref-safe
// path components.
package slug

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	disallowedRun = regexp.MustCompile(`[^a-z0-9._-]+`)
	dotRun        = regexp.MustCompile(`\.{2,}`)
)

// Make normalizes value into a slug made only of [a-z0-9._-].
//
// The value is NFKC-normalized and lower-cased, every run of other characters
// becomes a single hyphen, runs of dots collapse to one dot, and leading or
// trailing hyphens and dots are trimmed. A trailing ".lock", which git rejects
// in ref names, is rewritten to "-lock". If nothing survives, fallback is
// returned. Make is idempotent.
func Make(value, fallback string) string {
	s := norm.NFKC.String(strings.TrimSpace(value))
	s = strings.ToLower(s)
	s = disallowedRun.ReplaceAllString(s, "-")
	s = dotRun.ReplaceAllString(s, ".")
	s = strings.Trim(s, "-.")
	if strings.HasSuffix(s, ".lock") {
		s = strings.TrimSuffix(s, ".lock") + "-lock"
	}
	if s == "" {
		return fallback
	}
	return s
}
