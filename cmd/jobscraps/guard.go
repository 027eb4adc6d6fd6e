package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonesy/jobscraps/internal/backup"
	"github.com/jonesy/jobscraps/internal/config"
	"github.com/jonesy/jobscraps/internal/policy"
)

// newBackupEngine builds the snapshot engine for the primary database.
// The working copy is never backed up, so there is only one engine.
// Declared as a variable so tests can substitute a fake dump runner.
var newBackupEngine = func(cfg config.Config) *backup.Engine {
	return backup.NewEngine(backup.ExecRunner{}, cfg.Database(config.TargetPrimary), cfg.Backup)
}

// guardDestructive enforces the confirmation token and the backup-before
// rule for an operation on the current target. When the pre-operation
// snapshot fails the operation is blocked unless skipBackup was set.
func guardDestructive(ctx context.Context, cfg config.Config, op policy.Operation, confirm string, skipBackup bool, reason string) error {
	if err := policy.CheckConfirmation(target(), op, confirm); err != nil {
		return err
	}

	if policy.Decide(target(), op) != policy.BackupBefore {
		slog.Info("skipping backup", "operation", op, "target", target(), "reason", "policy")
		return nil
	}

	printWarning("Running %s against the primary database; prefer a working copy (recreate with \"working-copy\", then pass --working)", op)
	printStep("Backing up %s before %s", cfg.Database(config.TargetPrimary).Name, op)
	engine := newBackupEngine(cfg)
	if _, err := engine.Create(ctx, backup.KindAuto, reason); err != nil {
		if skipBackup {
			printWarning("Pre-operation backup failed, proceeding without it: %v", err)
			return nil
		}
		return fmt.Errorf("pre-operation backup failed: %w (pass --no-backup to proceed without one)", err)
	}
	enforceRetention(engine, cfg)
	return nil
}

// backupAfter takes the post-operation snapshot where the policy calls for
// one, then applies retention. Failures are reported but never undo the
// operation that already succeeded.
func backupAfter(ctx context.Context, cfg config.Config, op policy.Operation, reason string) {
	if policy.Decide(target(), op) != policy.BackupAfter {
		slog.Info("skipping backup", "operation", op, "target", target(), "reason", "policy")
		return
	}

	engine := newBackupEngine(cfg)
	if _, err := engine.Create(ctx, backup.KindAuto, reason); err != nil {
		printWarning("Post-operation backup failed: %v", err)
		return
	}
	enforceRetention(engine, cfg)
}

func enforceRetention(engine *backup.Engine, cfg config.Config) {
	summary, err := engine.EnforceRetention(backup.RetentionPolicyFromConfig(cfg.Backup))
	if err != nil {
		printWarning("Retention pass failed: %v", err)
		return
	}
	if summary.Triggered {
		printStep("Retention removed %d old snapshots (%d remain)", len(summary.Removed), summary.RemainingCount)
	}
}
