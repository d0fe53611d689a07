package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by viper, so
// the key "agent.command" is read from PROJECT_AGENT_AGENT_COMMAND.
const EnvPrefix = "PROJECT_AGENT"

// Config represents the complete project-agent configuration
type Config struct {
	// ArtifactsDir is the root under which run directories are created.
	// A leading ~ expands to the home directory. (default: ~/.project-agent-artifacts)
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`

	// NoAgent prepares the run directory without launching the agent.
	NoAgent bool `mapstructure:"no_agent" yaml:"no_agent"`

	// DisableWorktree runs in the current checkout instead of a managed worktree.
	DisableWorktree bool `mapstructure:"disable_worktree" yaml:"disable_worktree"`

	// WorktreeBootstrapped is set in the environment of a relaunched child.
	// It is not meant to be set in a config file.
	WorktreeBootstrapped bool `mapstructure:"worktree_bootstrapped" yaml:"worktree_bootstrapped"`

	// RunSeed overrides the uniqueness seed of an unscoped run.
	RunSeed string `mapstructure:"run_seed" yaml:"run_seed"`

	Agent      AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Validation ValidateConfig `mapstructure:"validate" yaml:"validate"`
	Logging    LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// AgentConfig controls how the coding agent is launched
type AgentConfig struct {
	// Command is the agent executable, looked up on PATH. (default: codex)
	Command string `mapstructure:"command" yaml:"command"`
	// Args are passed before the initial prompt.
	Args []string `mapstructure:"args" yaml:"args"`
}

// ValidateConfig controls the validate command
type ValidateConfig struct {
	// WatchDebounceMs is how long --watch waits for writes to settle. (default: 100)
	WatchDebounceMs int `mapstructure:"watch_debounce_ms" yaml:"watch_debounce_ms"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled writes JSON debug logs to <artifacts_dir>/debug.log. (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is one of debug, info, warn, error. (default: info)
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB rotates debug.log once it exceeds this size. (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated logs kept. (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		ArtifactsDir: filepath.Join("~", ".project-agent-artifacts"),
		Agent: AgentConfig{
			Command: "codex",
			Args:    []string{},
		},
		Validation: ValidateConfig{
			WatchDebounceMs: 100,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// WatchDebounce returns the watch debounce as a time.Duration
func (c *ValidateConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// ResolveArtifactsDir returns the absolute artifacts root. A leading ~
// expands to the home directory; a relative path is resolved against baseDir.
func (c *Config) ResolveArtifactsDir(baseDir string) string {
	path := strings.TrimSpace(c.ArtifactsDir)
	if path == "" {
		path = Default().ArtifactsDir
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("artifacts_dir", defaults.ArtifactsDir)
	viper.SetDefault("no_agent", defaults.NoAgent)
	viper.SetDefault("disable_worktree", defaults.DisableWorktree)
	viper.SetDefault("worktree_bootstrapped", defaults.WorktreeBootstrapped)
	viper.SetDefault("run_seed", defaults.RunSeed)

	// Agent defaults
	viper.SetDefault("agent.command", defaults.Agent.Command)
	viper.SetDefault("agent.args", defaults.Agent.Args)

	// Validate defaults
	viper.SetDefault("validate.watch_debounce_ms", defaults.Validation.WatchDebounceMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// BindEnv configures viper to read PROJECT_AGENT_* variables. Nested keys use
// underscores, and the legacy PROJECT_AGENT_NO_CODEX still disables the agent.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("no_agent", EnvPrefix+"_NO_AGENT", EnvPrefix+"_NO_CODEX")
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "project-agent")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".project-agent"
	}
	return filepath.Join(home, ".config", "project-agent")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
