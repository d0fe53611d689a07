package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/project-agent/project-agent/internal/artifact"
	"github.com/project-agent/project-agent/internal/config"
	"github.com/project-agent/project-agent/internal/errors"
	"github.com/project-agent/project-agent/internal/instructions"
	"github.com/project-agent/project-agent/internal/logging"
	"github.com/project-agent/project-agent/internal/process"
	"github.com/project-agent/project-agent/internal/projectconfig"
	"github.com/project-agent/project-agent/internal/worktree"
)

// runDeps holds the side effects of an issue run so tests can replace them.
type runDeps struct {
	git      worktree.Git
	fs       afero.Fs
	getwd    func() (string, error)
	runChild func(ctx context.Context, spec process.Spec) (int, error)
	relaunch func(dir string, args []string, env map[string]string) (process.Spec, error)
	now      func() time.Time
	pid      int
	stdout   io.Writer
	stderr   io.Writer
}

func defaultRunDeps(cmd *cobra.Command) runDeps {
	return runDeps{
		git:      worktree.NewCLIGit(),
		fs:       afero.NewOsFs(),
		getwd:    os.Getwd,
		runChild: process.Run,
		relaunch: process.RelaunchSpec,
		now:      time.Now,
		pid:      os.Getpid(),
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
	}
}

// runRequest is one invocation of `project-agent [ISSUE_ID]`.
type runRequest struct {
	IssueID string
	// Args are the original command-line arguments, replayed on relaunch.
	Args       []string
	Config     *config.Config
	Executable string
	Logger     *logging.Logger
}

func runIssue(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	issueID := ""
	if len(args) > 0 {
		issueID = strings.TrimSpace(args[0])
	}

	deps := defaultRunDeps(cmd)
	logger := openLogger(cfg, deps)
	defer logger.Close()

	logger = logger.WithIssue(issueID)
	err = executeRun(cmd.Context(), deps, runRequest{
		IssueID:    issueID,
		Args:       os.Args[1:],
		Config:     cfg,
		Executable: cmd.Root().Name(),
		Logger:     logger,
	})
	logOutcome(logger, err)
	return err
}

// logOutcome records how the run ended at a level matching the error's severity.
func logOutcome(logger *logging.Logger, err error) {
	switch {
	case err == nil:
		logger.Debug("run finished")
	case errors.IsSilent(err):
		logger.Info("run finished", "exit_code", errors.ExitCode(err))
	default:
		severity := errors.GetSeverity(err)
		switch {
		case severity >= errors.SeverityError:
			logger.Error("run failed", "error", err, "severity", severity.String())
		case severity == errors.SeverityWarning:
			logger.Warn("run failed", "error", err, "severity", severity.String())
		default:
			logger.Info("run failed", "error", err, "severity", severity.String())
		}
	}
}

// openLogger opens <artifacts_dir>/debug.log. Logging problems never stop a run.
func openLogger(cfg *config.Config, deps runDeps) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}
	cwd, err := deps.getwd()
	if err != nil {
		return logging.NopLogger()
	}
	logger, err := logging.NewLogger(cfg.ResolveArtifactsDir(cwd), cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(deps.stderr, "Warning: debug logging disabled: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

func executeRun(ctx context.Context, deps runDeps, req runRequest) error {
	cfg := req.Config
	logger := req.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	cwd, err := deps.getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	seed := strings.TrimSpace(cfg.RunSeed)
	if seed == "" {
		seed = worktree.NewSeed(deps.now(), deps.pid)
	}

	bootstrapper := worktree.NewBootstrapper(deps.git, worktree.BootstrapOptions{
		Disabled: cfg.DisableWorktree,
		Guarded:  cfg.WorktreeBootstrapped,
		Seed:     seed,
	}, logger)

	result, err := bootstrapper.EnsureWorkspace(ctx, cwd, req.IssueID)
	if err != nil {
		return err
	}
	logger.WithPhase("bootstrap").Debug("workspace decision", "action", result.Action(), "cwd", cwd)

	branch := ""
	switch r := result.(type) {
	case worktree.Relaunch:
		verb := "Reusing"
		if r.Created {
			verb = "Created"
		}
		fmt.Fprintf(deps.stdout, "%s worktree %s (%s).\n", verb, r.Path, r.Branch)
		return relaunchIn(ctx, deps, r, req.Args, seed)
	case worktree.AlreadyInTarget:
		fmt.Fprintf(deps.stdout, "Using managed worktree %s (%s).\n", r.Path, r.Branch)
		branch = r.Branch
	case worktree.Skipped:
		if cfg.WorktreeBootstrapped {
			// Relaunched child: the parent already placed us in the worktree.
			branch = worktree.ResolveSpec(req.IssueID, seed).Branch
		}
	}

	effectiveRoot := cwd
	loaded, err := projectconfig.Load(deps.fs, effectiveRoot)
	if err != nil {
		return err
	}
	var projectCfg *projectconfig.Config
	project := ""
	if loaded != nil {
		projectCfg = &loaded.Config
		project = loaded.Config.Project
	}

	namespace := projectconfig.Namespace(namespaceRoot(ctx, deps.git, effectiveRoot), projectCfg)
	runDir := artifact.RunDir(cfg.ResolveArtifactsDir(effectiveRoot), namespace, runKey(req.IssueID, seed))
	runPath := filepath.Join(runDir, artifact.RunFileName)
	instructionsPath := filepath.Join(runDir, artifact.InstructionsFileName)

	artifactLog := logger.WithPhase("artifact").With("run", runPath)
	store := artifact.NewStore(deps.fs)
	created, err := store.CreateIfAbsent(runPath, artifact.New(req.IssueID, deps.now()))
	if err != nil {
		return err
	}
	artifactLog.Info("run artifact ready", "created", created)

	data := instructions.Data{
		IssueID:    req.IssueID,
		RepoRoot:   effectiveRoot,
		Branch:     branch,
		Project:    project,
		RunPath:    runPath,
		Executable: req.Executable,
	}
	if err := writeRunContract(store, data, runDir, instructionsPath); err != nil {
		return err
	}
	artifactLog.Debug("run contract written", "instructions", instructionsPath)

	subject := req.IssueID
	if subject == "" {
		subject = "unscoped intake"
	}
	fmt.Fprintf(deps.stdout, "Prepared run context for %s.\n", subject)
	fmt.Fprintf(deps.stdout, "- Artifact: %s\n", runPath)
	fmt.Fprintf(deps.stdout, "- Instructions: %s\n", instructionsPath)
	if loaded != nil {
		fmt.Fprintf(deps.stdout, "- Project config: %s\n", loaded.Path)
	}

	if cfg.NoAgent {
		fmt.Fprintf(deps.stdout, "Next: open %s for this repo and follow %s in the generated artifact directory.\n",
			agentName(cfg.Agent.Command), artifact.InstructionsFileName)
		return nil
	}

	return launchAgent(ctx, deps, cfg.Agent, logger, effectiveRoot, instructionsPath,
		instructions.Prompt(data, instructionsPath))
}

func writeRunContract(store *artifact.Store, data instructions.Data, runDir, instructionsPath string) error {
	contract, err := instructions.Render(data)
	if err != nil {
		return err
	}
	if err := store.WriteFileAtomic(instructionsPath, []byte(contract)); err != nil {
		return err
	}

	skills := instructions.Skills(runDir)
	for _, skill := range skills {
		content, err := instructions.RenderSkill(skill, data)
		if err != nil {
			return err
		}
		if err := store.WriteFileAtomic(skill.Path, []byte(content)); err != nil {
			return err
		}
	}

	manifest, err := instructions.RenderManifest(skills)
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(instructions.ManifestPath(runDir), manifest)
}

// relaunchIn re-executes the current command inside the worktree and exits
// with the child's code.
func relaunchIn(ctx context.Context, deps runDeps, r worktree.Relaunch, args []string, seed string) error {
	spec, err := deps.relaunch(r.Path, args, map[string]string{
		worktree.GuardEnv: "1",
		worktree.SeedEnv:  seed,
	})
	if err == nil {
		var code int
		code, err = deps.runChild(ctx, spec)
		if err == nil {
			return exitWith(code)
		}
	}
	fmt.Fprintf(deps.stderr, "Failed to relaunch in worktree: %v\n", err)
	return errors.NewExitError(1)
}

func launchAgent(ctx context.Context, deps runDeps, agent config.AgentConfig, logger *logging.Logger, root, instructionsPath, prompt string) error {
	name := agentName(agent.Command)
	fmt.Fprintf(deps.stdout, "Launching %s for this repository...\n", name)

	args := append(append([]string{}, agent.Args...), prompt)
	log := logger.WithPhase("agent").With("command", agent.Command)
	log.Info("launching agent", "dir", root)

	code, err := deps.runChild(ctx, process.Spec{Name: agent.Command, Args: args, Dir: root})
	if err != nil {
		log.Error("agent launch failed", "error", err.Error())
		if errors.Is(err, errors.ErrExecutableNotFound) {
			fmt.Fprintf(deps.stderr, "%s CLI was not found on PATH.\n", name)
		} else {
			fmt.Fprintf(deps.stderr, "Failed to launch %s: %v\n", name, err)
		}
		fmt.Fprintf(deps.stderr, "Run %s manually from %s and follow %s.\n", name, root, instructionsPath)
		return errors.NewExitError(1)
	}

	log.Info("agent exited", "exit_code", code)
	return exitWith(code)
}

func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return errors.NewExitError(code)
}

// runKey names the run directory: the issue id when it is a usable path
// component, otherwise the worktree key.
func runKey(issueID, seed string) string {
	if issueID != "" && issueID != "." && issueID != ".." && !strings.ContainsAny(issueID, `/\`) {
		return issueID
	}
	return worktree.ResolveSpec(issueID, seed).Key
}

// namespaceRoot is the main checkout when root is inside git, so every
// worktree of a repository shares one artifact namespace.
func namespaceRoot(ctx context.Context, git worktree.Git, root string) string {
	if repoRoot, err := git.RepoRoot(ctx, root); err == nil && repoRoot != "" {
		return repoRoot
	}
	return root
}

func agentName(command string) string {
	base := filepath.Base(command)
	if base == "codex" {
		return "Codex"
	}
	return base
}
