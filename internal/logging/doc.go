// Package logging provides the JSON debug log for project-agent runs.
//
// It wraps log/slog with a [Logger] that carries persistent attributes
// (issue_id, phase, worktree) into every entry, and a [RotatingWriter] that
// keeps debug.log under a size limit. The log is written to
// <artifacts_dir>/debug.log when logging.enabled is set:
//
//	logger, err := logging.NewLogger(artifactsRoot, cfg.Logging.Level, logging.RotationConfig{
//	    MaxSizeMB:  cfg.Logging.MaxSizeMB,
//	    MaxBackups: cfg.Logging.MaxBackups,
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithIssue("AG-1").WithPhase("bootstrap")
//	log.Info("created worktree", "worktree", path)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"created worktree","issue_id":"AG-1","phase":"bootstrap","worktree":"..."}
//
// User-facing progress goes to stdout and stderr as plain text; this log is
// for post-hoc debugging only. Use [NopLogger] when logging is disabled and
// in tests.
package logging
