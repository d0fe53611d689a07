package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "logging.level")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

const (
	maxPathLength    = 4096
	maxWatchDebounce = 10000 // 10s
	maxLogSizeMB     = 1000  // 1GB
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateValidate()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validatePaths validates artifacts_dir and run_seed
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(c.ArtifactsDir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "artifacts_dir",
			Value:   c.ArtifactsDir,
			Message: "path contains invalid null character",
		})
	}
	if len(c.ArtifactsDir) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   "artifacts_dir",
			Value:   c.ArtifactsDir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}
	if strings.ContainsRune(c.RunSeed, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "run_seed",
			Value:   c.RunSeed,
			Message: "contains invalid null character",
		})
	}

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	// The command only matters when the agent is launched.
	if !c.NoAgent && strings.TrimSpace(c.Agent.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "must not be empty unless no_agent is set",
		})
	}
	if strings.ContainsAny(c.Agent.Command, "\x00\n") {
		errors = append(errors, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "contains invalid characters",
		})
	}

	return errors
}

// validateValidate validates the ValidateConfig
func (c *Config) validateValidate() []ValidationError {
	var errors []ValidationError

	if c.Validation.WatchDebounceMs < 0 || c.Validation.WatchDebounceMs > maxWatchDebounce {
		errors = append(errors, ValidationError{
			Field:   "validate.watch_debounce_ms",
			Value:   c.Validation.WatchDebounceMs,
			Message: fmt.Sprintf("must be between 0 and %d", maxWatchDebounce),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
