// Package process runs child processes that share the terminal with
// project-agent: the relaunched copy of itself and the coding agent.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/project-agent/project-agent/internal/errors"
)

// Spec describes a child process.
type Spec struct {
	// Name is an executable path or a name looked up on PATH.
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is the complete environment; nil inherits the parent's.
	Env []string

	// Stdio defaults to the parent's streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts the child, waits for it and returns its exit code. A non-zero
// exit is not an error. A missing executable returns ErrExecutableNotFound.
// A child killed by a signal reports exit code 1.
//
// Cancelling ctx after the child has started does not stop it. The child
// shares the terminal's process group, so Ctrl-C reaches it directly and Run
// keeps waiting for its real exit code.
func Run(ctx context.Context, spec Spec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 1, err
	}
	cmd := exec.CommandContext(context.WithoutCancel(ctx), spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = orReader(spec.Stdin, os.Stdin)
	cmd.Stdout = orWriter(spec.Stdout, os.Stdout)
	cmd.Stderr = orWriter(spec.Stderr, os.Stderr)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return 1, fmt.Errorf("%w: %s", errors.ErrExecutableNotFound, spec.Name)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return 1, nil
	}
	return 1, fmt.Errorf("failed to run %s: %w", spec.Name, err)
}

// RelaunchSpec describes re-executing the running binary with the same
// arguments inside dir, with env applied on top of the current environment.
func RelaunchSpec(dir string, args []string, env map[string]string) (Spec, error) {
	exe, err := os.Executable()
	if err != nil {
		return Spec{}, fmt.Errorf("%w: cannot locate the running executable: %v", errors.ErrExecutableNotFound, err)
	}
	return Spec{
		Name: exe,
		Args: append([]string(nil), args...),
		Dir:  dir,
		Env:  MergeEnv(os.Environ(), env),
	}, nil
}

// MergeEnv returns base with every key in overrides set, replacing earlier
// values. New keys are appended in sorted order.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

func orReader(r, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func orWriter(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
