// Package config provides CLI commands for managing project-agent configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/project-agent/project-agent/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify project-agent configuration",
	Long: `View or modify project-agent configuration.

Use 'config show' to display the effective configuration.
Use subcommands to modify settings or create a config file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  project-agent config set agent.command claude
  project-agent config set logging.level debug
  project-agent config set artifacts_dir ~/runs

Valid keys:
  artifacts_dir               - Root directory for run artifacts
  no_agent                    - Prepare runs without launching the agent (true/false)
  disable_worktree            - Run in the current checkout (true/false)
  agent.command               - Agent CLI command name/path
  agent.args                  - Agent arguments, space separated
  validate.watch_debounce_ms  - Debounce for validate --watch in milliseconds
  logging.enabled             - Write debug.log under artifacts_dir (true/false)
  logging.level               - Options: debug, info, warn, error
  logging.max_size_mb         - Rotate debug.log above this size
  logging.max_backups         - Rotated debug logs to keep`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/project-agent/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  project-agent config reset                 # Reset all to defaults
  project-agent config reset logging.level   # Reset only logging.level`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindList
	kindLevel
)

// setting is one key that `config set` and `config reset` may write.
type setting struct {
	kind       keyKind
	defaultVal func(*appconfig.Config) any
}

// settableKeys excludes worktree_bootstrapped and run_seed, which only make
// sense per process.
var settableKeys = map[string]setting{
	"artifacts_dir":              {kindString, func(c *appconfig.Config) any { return c.ArtifactsDir }},
	"no_agent":                   {kindBool, func(c *appconfig.Config) any { return c.NoAgent }},
	"disable_worktree":           {kindBool, func(c *appconfig.Config) any { return c.DisableWorktree }},
	"agent.command":              {kindString, func(c *appconfig.Config) any { return c.Agent.Command }},
	"agent.args":                 {kindList, func(c *appconfig.Config) any { return c.Agent.Args }},
	"validate.watch_debounce_ms": {kindInt, func(c *appconfig.Config) any { return c.Validation.WatchDebounceMs }},
	"logging.enabled":            {kindBool, func(c *appconfig.Config) any { return c.Logging.Enabled }},
	"logging.level":              {kindLevel, func(c *appconfig.Config) any { return c.Logging.Level }},
	"logging.max_size_mb":        {kindInt, func(c *appconfig.Config) any { return c.Logging.MaxSizeMB }},
	"logging.max_backups":        {kindInt, func(c *appconfig.Config) any { return c.Logging.MaxBackups }},
}

// SettableKeys returns the keys accepted by `config set`, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown configuration key: %s\nRun 'project-agent config set --help' to see valid keys", key)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := appconfig.Get()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

// parseValue converts a command-line value to the type stored for key.
func parseValue(key, value string) (any, error) {
	s, ok := settableKeys[key]
	if !ok {
		return nil, unknownKeyError(key)
	}

	switch s.kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case kindList:
		return strings.Fields(value), nil
	case kindLevel:
		level := strings.ToLower(strings.TrimSpace(value))
		if !slices.Contains(appconfig.ValidLogLevels(), level) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return level, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

// writeConfig persists viper's current values to the user config file.
func writeConfig() (string, error) {
	configFile := appconfig.ConfigFile()
	if err := os.MkdirAll(appconfig.ConfigDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

const defaultConfigContent = `# project-agent configuration

# Root directory for run artifacts. Each run gets
# <artifacts_dir>/<namespace>/<run key>/run.json
artifacts_dir: ~/.project-agent-artifacts

# Prepare the run directory without launching the agent
no_agent: false

# Run in the current checkout instead of a managed git worktree
disable_worktree: false

# Coding agent settings
agent:
  # Agent CLI command name/path
  command: codex
  # Arguments passed before the initial prompt
  args: []

# validate command settings
validate:
  # How long validate --watch waits for writes to settle
  watch_debounce_ms: 100

# Debug logging to <artifacts_dir>/debug.log
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  # Rotate debug.log once it exceeds this size
  max_size_mb: 10
  # Number of rotated logs to keep
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'project-agent config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize project-agent's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/project-agent/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_AGENT_COMMAND)\n", appconfig.EnvPrefix, appconfig.EnvPrefix)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...\n")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	defaults := appconfig.Default()

	if len(args) == 0 {
		for key, s := range settableKeys {
			viper.Set(key, s.defaultVal(defaults))
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := args[0]
		s, ok := settableKeys[key]
		if !ok {
			return unknownKeyError(key)
		}
		value := s.defaultVal(defaults)
		viper.Set(key, value)
		fmt.Fprintf(out, "Reset %s to default: %v\n", key, value)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}
