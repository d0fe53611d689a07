package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SchemaError is a structural problem at one field path, such as
// "tests.results[0].exitCode". Problems with the document as a whole use
// the path "$".
type SchemaError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e SchemaError) Error() string {
	return e.Path + ": " + e.Message
}

// SchemaErrors collects every structural problem found in a document.
type SchemaErrors []SchemaError

func (e SchemaErrors) Error() string {
	msgs := make([]string, len(e))
	for i, se := range e {
		msgs[i] = se.Error()
	}
	return strings.Join(msgs, "; ")
}

// Strings returns each error formatted as "path: message".
func (e SchemaErrors) Strings() []string {
	out := make([]string, len(e))
	for i, se := range e {
		out[i] = se.Error()
	}
	return out
}

// Parse checks raw against the run artifact schema. It reports every
// violation rather than stopping at the first one; the artifact is returned
// only when there are none. Keys the schema does not know are ignored.
func Parse(raw []byte) (*RunArtifact, SchemaErrors) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, SchemaErrors{{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, SchemaErrors{{Path: "$", Message: "invalid JSON: unexpected data after top-level value"}}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, SchemaErrors{{Path: "$", Message: "must be an object"}}
	}

	s := &schema{}
	s.checkArtifact(obj)
	if len(s.errs) > 0 {
		return nil, s.errs
	}

	var a RunArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, SchemaErrors{{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	return &a, nil
}

// schema walks a generically decoded document and records violations.
type schema struct {
	errs SchemaErrors
}

func (s *schema) add(path, format string, args ...any) {
	s.errs = append(s.errs, SchemaError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (s *schema) checkArtifact(obj map[string]any) {
	if v, ok := s.integer(obj, "version", "version"); ok && v != Version {
		s.add("version", "unsupported run artifact version %d (expected %d)", v, Version)
	}
	s.str(obj, "issueId", "issueId", true)
	s.str(obj, "startedAt", "startedAt", true)
	s.str(obj, "endedAt", "endedAt", false)
	if v, ok := s.str(obj, "status", "status", true); ok && !validStatus(v) {
		s.add("status", "must be one of in_progress, done, blocked (got %q)", v)
	}

	if linear, ok := s.object(obj, "linear", "linear"); ok {
		s.boolean(linear, "planCommentPosted", "linear.planCommentPosted")
		s.boolean(linear, "progressCommentPosted", "linear.progressCommentPosted")
		s.boolean(linear, "doneCommentPosted", "linear.doneCommentPosted")
		s.str(linear, "stateTransitionedTo", "linear.stateTransitionedTo", false)
	}

	if changes, ok := s.object(obj, "changes", "changes"); ok {
		s.strings(changes, "filesTouched", "changes.filesTouched")
		s.strings(changes, "commitShas", "changes.commitShas")
		s.str(changes, "pullRequestUrl", "changes.pullRequestUrl", true)
	}

	if tests, ok := s.object(obj, "tests", "tests"); ok {
		s.strings(tests, "commands", "tests.commands")
		if results, ok := s.array(tests, "results", "tests.results"); ok {
			for i, item := range results {
				path := fmt.Sprintf("tests.results[%d]", i)
				result, ok := item.(map[string]any)
				if !ok {
					s.add(path, "must be an object")
					continue
				}
				s.str(result, "command", path+".command", true)
				s.integer(result, "exitCode", path+".exitCode")
				s.str(result, "output", path+".output", false)
			}
		}
	}

	s.strings(obj, "verification", "verification")
	s.str(obj, "summary", "summary", true)
	s.strings(obj, "blockers", "blockers")
}

// lookup returns obj[key], recording a violation at path when a required key
// is missing.
func (s *schema) lookup(obj map[string]any, key, path string, required bool) (any, bool) {
	v, ok := obj[key]
	if !ok {
		if required {
			s.add(path, "is required")
		}
		return nil, false
	}
	return v, true
}

func (s *schema) str(obj map[string]any, key, path string, required bool) (string, bool) {
	v, ok := s.lookup(obj, key, path, required)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	if !ok {
		s.add(path, "must be a string")
		return "", false
	}
	return str, true
}

func (s *schema) boolean(obj map[string]any, key, path string) {
	v, ok := s.lookup(obj, key, path, true)
	if !ok {
		return
	}
	if _, ok := v.(bool); !ok {
		s.add(path, "must be a boolean")
	}
}

func (s *schema) integer(obj map[string]any, key, path string) (int64, bool) {
	v, ok := s.lookup(obj, key, path, true)
	if !ok {
		return 0, false
	}
	num, ok := v.(json.Number)
	if !ok {
		s.add(path, "must be an integer")
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		s.add(path, "must be an integer")
		return 0, false
	}
	return n, true
}

func (s *schema) object(obj map[string]any, key, path string) (map[string]any, bool) {
	v, ok := s.lookup(obj, key, path, true)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		s.add(path, "must be an object")
		return nil, false
	}
	return m, true
}

func (s *schema) array(obj map[string]any, key, path string) ([]any, bool) {
	v, ok := s.lookup(obj, key, path, true)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		s.add(path, "must be an array")
		return nil, false
	}
	return arr, true
}

func (s *schema) strings(obj map[string]any, key, path string) {
	arr, ok := s.array(obj, key, path)
	if !ok {
		return
	}
	for i, item := range arr {
		if _, ok := item.(string); !ok {
			s.add(fmt.Sprintf("%s[%d]", path, i), "must be a string")
		}
	}
}

func validStatus(v string) bool {
	for _, st := range Statuses() {
		if string(st) == v {
			return true
		}
	}
	return false
}
