// Package errors provides centralized error definitions and error handling
// utilities for project-agent. It defines sentinel errors, domain error types
// carrying git and artifact context, semantic error types, and classification
// helpers.
//
// # Error Types
//
// Domain-specific errors represent failures in a subsystem:
//   - GitError: git invocations (repository root, branch lookup, worktree add)
//   - ArtifactError: reading or writing a run artifact on disk
//
// Semantic errors represent common conditions:
//   - NotFoundError: a resource could not be found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewGitError("failed to prepare git worktree", cause).
//		WithWorktree(path).
//		WithBranch(branch).
//		WithGitOutput(stderr)
//
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) { ... }
//
//	if errors.Is(err, errors.ErrNotGitRepository) { ... }
//
// Nothing in this package retries. Callers fail fast and surface the message.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only need this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are only interesting while debugging.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational conditions, such as a skipped bootstrap.
	SeverityInfo
	// SeverityWarning is for problems the user can fix, such as an invalid artifact.
	SeverityWarning
	// SeverityError is for failures that abort the current command.
	SeverityError
	// SeverityCritical is for failures that leave state inconsistent.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not inside a git work tree.
	ErrNotGitRepository = New("not a git repository")
	// ErrGitNotFound indicates that the git executable is not on PATH.
	ErrGitNotFound = New("git executable not found")
	// ErrWorktreeCreate indicates that `git worktree add` exited non-zero.
	ErrWorktreeCreate = New("failed to create worktree")
)

// Artifact-related sentinel errors
var (
	// ErrArtifactNotFound indicates that no run artifact exists at a path.
	ErrArtifactNotFound = New("run artifact not found")
	// ErrArtifactSchema indicates that a run artifact failed schema validation.
	ErrArtifactSchema = New("run artifact schema validation failed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrExecutableNotFound indicates that a required executable is missing.
	ErrExecutableNotFound = New("executable not found")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// AgentError is implemented by every error type in this package.
type AgentError interface {
	error
	Unwrap() error
	Severity() Severity
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents a failed git invocation.
//
// Example:
//
//	err := errors.NewGitError("failed to prepare git worktree", errors.ErrWorktreeCreate).
//		WithWorktree("/repo/.project-agent-worktrees/ag-1").
//		WithGitOutput("fatal: 'project-agent-ag-1' is already checked out")
type GitError struct {
	baseError
	Branch     string
	Worktree   string
	Repository string
	GitOutput  string // Captured git command output, verbatim
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = output
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// ArtifactError represents a failure reading or writing a run artifact.
type ArtifactError struct {
	baseError
	Path string
}

// NewArtifactError creates a new ArtifactError.
func NewArtifactError(message string, cause error) *ArtifactError {
	return &ArtifactError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath adds the artifact path to the error context.
func (e *ArtifactError) WithPath(path string) *ArtifactError {
	e.Path = path
	return e
}

// WithSeverity sets the error severity.
func (e *ArtifactError) WithSeverity(s Severity) *ArtifactError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ArtifactError) Error() string {
	prefix := "artifact error"
	if e.Path != "" {
		prefix = fmt.Sprintf("artifact error [path=%s]", e.Path)
	}
	return fmt.Sprintf("%s: %s", prefix, e.baseError.Error())
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("run artifact", "/tmp/run.json")
//	fmt.Println(err) // "run artifact '/tmp/run.json' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError(`"project" must be a non-empty string`).
//		WithField("project")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is reports ErrInvalidInput as a match so callers can test for it generically.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

// ExitError carries a process exit code for a failure whose explanation has
// already been printed. Commands return it so the entry point exits with Code
// without printing anything further.
type ExitError struct {
	Code int
}

// NewExitError returns an ExitError for code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps err to a process exit code: 0 for nil, the carried code for
// an ExitError, and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// IsSilent reports whether err is an ExitError, whose message must not be printed.
func IsSilent(err error) bool {
	var exitErr *ExitError
	return As(err, &exitErr)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display as-is.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Errors from outside this package default to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var agentErr AgentError
	if As(err, &agentErr) {
		return agentErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
