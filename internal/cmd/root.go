package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/project-agent/project-agent/internal/cmd/config"
	"github.com/project-agent/project-agent/internal/cmd/runs"
	"github.com/project-agent/project-agent/internal/cmd/validate"
	appconfig "github.com/project-agent/project-agent/internal/config"
	"github.com/project-agent/project-agent/internal/errors"
	"github.com/project-agent/project-agent/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "project-agent [ISSUE_ID]",
	Short: "Prepare an isolated run for a coding agent",
	Long: `project-agent prepares a run of a coding agent against this repository.

Each run gets its own git worktree under .project-agent-worktrees/ and a run
directory holding run.json, the artifact the agent keeps up to date, and
codex-instructions.md, the contract it follows. When the worktree is ready
project-agent relaunches itself inside it and starts the agent there.

Without ISSUE_ID the run is unscoped: the agent waits for a concrete request
and binds run.json to an issue only when implementation starts.

Examples:
  project-agent AG-1
  project-agent --no-agent
  project-agent BRI-39 --artifacts-dir ./artifacts
  project-agent validate ~/.project-agent-artifacts/acme/AG-1/run.json`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIssue,
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	reportError(os.Stderr, err)
	return errors.ExitCode(err)
}

// reportError prints err unless it is silent. Errors that are not known to be
// user-facing get a pointer to the debug log.
func reportError(w io.Writer, err error) {
	if err == nil || errors.IsSilent(err) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if !errors.IsUserFacing(err) {
		fmt.Fprintf(w, "Run with %s_LOGGING_LEVEL=debug and see %s in the artifacts directory for details.\n",
			appconfig.EnvPrefix, logging.FileName)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/project-agent/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	// Run flags. --no-codex is the historical spelling of --no-agent.
	rootCmd.Flags().String("artifacts-dir", "", "root directory for run artifacts (default ~/.project-agent-artifacts)")
	rootCmd.Flags().Bool("no-agent", false, "prepare the run without launching the agent")
	rootCmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "no-codex" {
			name = "no-agent"
		}
		return pflag.NormalizedName(name)
	})
	_ = viper.BindPFlag("artifacts_dir", rootCmd.Flags().Lookup("artifacts-dir"))
	_ = viper.BindPFlag("no_agent", rootCmd.Flags().Lookup("no-agent"))

	validate.Register(rootCmd)
	runs.Register(rootCmd)
	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/project-agent")
		viper.AddConfigPath(".")
	}

	// PROJECT_AGENT_* environment variables, e.g. PROJECT_AGENT_AGENT_COMMAND
	// for agent.command
	appconfig.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
