package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesy/jobscraps/internal/backup"
	"github.com/jonesy/jobscraps/internal/config"
	"github.com/jonesy/jobscraps/internal/dedupe"
	"github.com/jonesy/jobscraps/internal/policy"
	"github.com/jonesy/jobscraps/internal/scrape"
	"github.com/jonesy/jobscraps/internal/storage"
)

func dedupeOptions(cfg config.Config) dedupe.Options {
	return dedupe.Options{
		RegionPatterns: cfg.Dedupe.RegionPatterns,
		SitePreference: cfg.Dedupe.SitePreference,
	}
}

// --- scrape ---

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the configured searches and store new postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		searches, err := scrape.LoadSearches(cfg.Scrape.SearchConfigPath)
		if err != nil {
			return err
		}
		if len(searches) == 0 {
			printWarning("No enabled searches in %s", cfg.Scrape.SearchConfigPath)
			return nil
		}

		store, err := storage.Open(ctx, cfg.Database(target()))
		if err != nil {
			return err
		}
		defer store.Close()

		source := scrape.NewHTTPSource(cfg.Scrape.SourceURL)
		runner := scrape.NewRunner(source, store, cfg.Scrape.Concurrency)

		printStep("Running %d searches against %s", len(searches), targetLabel(cfg))
		res, err := runner.Run(ctx, searches)
		if err != nil {
			return err
		}
		printSuccess("Scrape finished: %d found, %d new", res.Found, res.Inserted)

		if res.Inserted > 0 {
			backupAfter(ctx, cfg, policy.OpScrape, backup.ReasonPostScraping)
		}
		return nil
	},
}

// --- duplicates ---

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Analyze and remove duplicate postings",
}

var duplicatesAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rank duplicate groups and write the delete list",
	Long: `Group postings by normalized title and company, rank each group and
write the losers' IDs to the delete list. Nothing is deleted; review the
report and the delete list, then run "duplicates apply".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := storage.Open(ctx, cfg.Database(target()))
		if err != nil {
			return err
		}
		defer store.Close()

		postings, err := store.ListAllPostings(ctx)
		if err != nil {
			return err
		}

		res := dedupe.Resolve(postings, dedupeOptions(cfg))
		if err := dedupe.WriteReport(os.Stdout, res); err != nil {
			return err
		}
		if err := dedupe.WriteDeleteList(cfg.Dedupe.DeleteListPath, res.DeleteIDs); err != nil {
			return err
		}

		printSuccess("%d groups, %d postings to delete", len(res.Groups), len(res.DeleteIDs))
		printStep("Delete list written to %s; run \"jobscraps duplicates apply\" after review", cfg.Dedupe.DeleteListPath)
		return nil
	},
}

var duplicatesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Delete the postings named in the delete list",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		confirm, _ := cmd.Flags().GetString("confirm")
		skipBackup, _ := cmd.Flags().GetBool("no-backup")

		ids, err := dedupe.ReadDeleteList(cfg.Dedupe.DeleteListPath)
		if err != nil {
			return fmt.Errorf("reading delete list: %w (run \"duplicates analyze\" first)", err)
		}

		if err := guardDestructive(ctx, cfg, policy.OpApplyDuplicates, confirm, skipBackup, backup.ReasonDuplicates); err != nil {
			return err
		}

		store, err := storage.Open(ctx, cfg.Database(target()))
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.DeleteByIDs(ctx, ids)
		if err != nil {
			return err
		}
		printSuccess("Deleted %d duplicate postings from %s", deleted, targetLabel(cfg))
		return nil
	},
}

// --- clean ---

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete postings by category",
}

// runClean wraps the shared guard/open/delete/report sequence of the clean
// subcommands.
func runClean(cmd *cobra.Command, op policy.Operation, reason string,
	del func(ctx context.Context, store *storage.Store) (int64, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	confirm, _ := cmd.Flags().GetString("confirm")
	skipBackup, _ := cmd.Flags().GetBool("no-backup")

	if err := guardDestructive(ctx, cfg, op, confirm, skipBackup, reason); err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Database(target()))
	if err != nil {
		return err
	}
	defer store.Close()

	deleted, err := del(ctx, store)
	if err != nil {
		return err
	}
	printSuccess("Deleted %d postings from %s", deleted, targetLabel(cfg))
	return nil
}

var cleanSalaryCmd = &cobra.Command{
	Use:   "salary",
	Short: "Delete postings whose salary falls below the thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		min, _ := cmd.Flags().GetFloat64("min")
		max, _ := cmd.Flags().GetFloat64("max")
		return runClean(cmd, policy.OpDeleteRows, backup.ReasonDeletion,
			func(ctx context.Context, store *storage.Store) (int64, error) {
				return store.DeleteBySalary(ctx, min, max)
			})
	},
}

var cleanCompanyCmd = &cobra.Command{
	Use:   "company",
	Short: "Delete postings whose company matches a pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, _ := cmd.Flags().GetStringSlice("pattern")
		if len(patterns) == 0 {
			return fmt.Errorf("at least one --pattern is required")
		}
		return runClean(cmd, policy.OpDeleteRows, backup.ReasonDeletion,
			func(ctx context.Context, store *storage.Store) (int64, error) {
				return store.DeleteByField(ctx, "company", patterns)
			})
	},
}

var cleanTitleCmd = &cobra.Command{
	Use:   "title",
	Short: "Delete postings whose title matches a pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, _ := cmd.Flags().GetStringSlice("pattern")
		if len(patterns) == 0 {
			return fmt.Errorf("at least one --pattern is required")
		}
		return runClean(cmd, policy.OpDeleteRows, backup.ReasonDeletion,
			func(ctx context.Context, store *storage.Store) (int64, error) {
				return store.DeleteByField(ctx, "title", patterns)
			})
	},
}

var cleanBeforeCmd = &cobra.Command{
	Use:   "before",
	Short: "Delete postings scraped before a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		cutoff, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", dateStr, err)
		}
		return runClean(cmd, policy.OpDeleteRows, backup.ReasonDeletion,
			func(ctx context.Context, store *storage.Store) (int64, error) {
				return store.DeleteBefore(ctx, cutoff)
			})
	},
}

var cleanAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete every posting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean(cmd, policy.OpClearAll, backup.ReasonClearAll,
			func(ctx context.Context, store *storage.Store) (int64, error) {
				return store.ClearAll(ctx)
			})
	},
}

// --- backup ---

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database snapshots",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Take a manual snapshot of the primary database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine := newBackupEngine(cfg)
		snap, err := engine.Create(cmd.Context(), backup.KindManual, backup.ReasonManual)
		if err != nil {
			return err
		}
		printSuccess("Snapshot %s (%.1f MB)", snap.Filename, float64(snap.SizeBytes)/(1024*1024))
		enforceRetention(engine, cfg)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		snaps, err := newBackupEngine(cfg).List()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots archived.")
			return nil
		}

		var total int64
		for _, s := range snaps {
			verified := " "
			if s.Verified {
				verified = colorize(colorGreen, "✓")
			}
			fmt.Printf("%s %s  %8.1f MB  %s/%s\n",
				verified, s.CreatedAt.Format("2006-01-02 15:04"),
				float64(s.SizeBytes)/(1024*1024), s.Kind, s.Reason)
			fmt.Printf("    %s\n", colorize(colorCyan, s.Filename))
			total += s.SizeBytes
		}
		fmt.Printf("\n%d snapshots, %.2f GB\n", len(snaps), float64(total)/(1<<30))
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <filename>",
	Short: "Restore a snapshot over the current database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		confirm, _ := cmd.Flags().GetString("confirm")

		engine := newBackupEngine(cfg)
		printStep("Restoring %s into %s", args[0], cfg.Database(config.TargetPrimary).Name)
		if err := engine.Restore(cmd.Context(), args[0], confirm); err != nil {
			return err
		}
		printSuccess("Restore complete")
		return nil
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <filename>",
	Short: "Check that a snapshot decompresses to a valid dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := newBackupEngine(cfg).VerifyIntegrity(args[0]); err != nil {
			return err
		}
		printSuccess("Snapshot %s verified", args[0])
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy to the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine := newBackupEngine(cfg)
		summary, err := engine.EnforceRetention(backup.RetentionPolicyFromConfig(cfg.Backup))
		if err != nil {
			return err
		}
		if !summary.Triggered {
			printSuccess("Archive within limits: %d snapshots, %.2f GB", summary.RemainingCount, float64(summary.RemainingBytes)/(1<<30))
			return nil
		}
		printSuccess("Removed %d snapshots; %d remain (%.2f GB)", len(summary.Removed), summary.RemainingCount, float64(summary.RemainingBytes)/(1<<30))
		return nil
	},
}

// --- working-copy ---

var workingCopyCmd = &cobra.Command{
	Use:   "working-copy",
	Short: "Recreate the working copy from the primary database",
	Long: `Drop the working copy and clone it fresh from the primary database
using a server-side template copy. Experiments then run against the clone
with --working, leaving the primary untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		printStep("Cloning %s into %s", cfg.Primary.Name, cfg.Working.Name)
		if err := storage.CloneDatabase(cmd.Context(), cfg.Primary, cfg.Primary.Name, cfg.Working.Name); err != nil {
			return err
		}
		printSuccess("Working copy %s recreated", cfg.Working.Name)
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent search runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := cmd.Context()

		store, err := storage.Open(ctx, cfg.Database(target()))
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.SearchHistory(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No searches recorded.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-20s  %d found\n",
				r.Timestamp.Format("2006-01-02 15:04"),
				colorize(colorBold, r.Query), r.JobsFound)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

func addConfirmFlags(cmd *cobra.Command) {
	cmd.Flags().String("confirm", "", fmt.Sprintf("type %s to confirm a destructive operation on the primary database", policy.ConfirmDeleteToken))
	cmd.Flags().Bool("no-backup", false, "proceed even if the pre-operation backup fails")
}

func init() {
	duplicatesCmd.AddCommand(duplicatesAnalyzeCmd)
	duplicatesCmd.AddCommand(duplicatesApplyCmd)
	addConfirmFlags(duplicatesApplyCmd)

	cleanSalaryCmd.Flags().Float64("min", 50000, "delete postings with max salary below this")
	cleanSalaryCmd.Flags().Float64("max", 60000, "delete postings with min salary below this when no max is set")
	cleanCompanyCmd.Flags().StringSlice("pattern", nil, "company patterns to match (repeatable, case-insensitive, %% wildcards)")
	cleanTitleCmd.Flags().StringSlice("pattern", nil, "title patterns to match (repeatable, case-insensitive, %% wildcards)")
	cleanBeforeCmd.Flags().String("date", "", "delete postings scraped before this date (YYYY-MM-DD)")
	cleanBeforeCmd.MarkFlagRequired("date")
	for _, c := range []*cobra.Command{cleanSalaryCmd, cleanCompanyCmd, cleanTitleCmd, cleanBeforeCmd, cleanAllCmd} {
		addConfirmFlags(c)
		cleanCmd.AddCommand(c)
	}

	backupRestoreCmd.Flags().String("confirm", "", fmt.Sprintf("type %s to confirm overwriting the database", backup.ConfirmRestoreToken))
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupVerifyCmd)
	backupCmd.AddCommand(backupPruneCmd)

	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")

	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(duplicatesCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(workingCopyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}
