package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesy/jobscraps/internal/api"
	"github.com/jonesy/jobscraps/internal/backup"
	"github.com/jonesy/jobscraps/internal/config"
	"github.com/jonesy/jobscraps/internal/policy"
	"github.com/jonesy/jobscraps/internal/scheduler"
	"github.com/jonesy/jobscraps/internal/scrape"
	"github.com/jonesy/jobscraps/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the read-only API server and the scheduled scrape job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "jobscraps version %s\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Primary)
	if err != nil {
		return fmt.Errorf("opening primary database: %w", err)
	}
	defer store.Close()

	engine := newBackupEngine(cfg)
	handler := api.NewHandler(store, engine, dedupeOptions(cfg))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Scheduled scrape runs against the primary with the same semantics as
	// the scrape command, including the post-run snapshot and retention.
	sched, err := scheduler.New(cfg.Server.CronSpec, func() {
		if err := scheduledScrape(ctx, cfg, store, engine); err != nil {
			slog.Error("scheduled scrape failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func scheduledScrape(ctx context.Context, cfg config.Config, store *storage.Store, engine *backup.Engine) error {
	searches, err := scrape.LoadSearches(cfg.Scrape.SearchConfigPath)
	if err != nil {
		return err
	}
	if len(searches) == 0 {
		return nil
	}

	source := scrape.NewHTTPSource(cfg.Scrape.SourceURL)
	runner := scrape.NewRunner(source, store, cfg.Scrape.Concurrency)

	res, err := runner.Run(ctx, searches)
	if err != nil {
		return err
	}
	if res.Inserted == 0 {
		return nil
	}

	if policy.Decide(config.TargetPrimary, policy.OpScrape) == policy.BackupAfter {
		if _, err := engine.Create(ctx, backup.KindAuto, backup.ReasonPostScraping); err != nil {
			slog.Warn("post-scrape backup failed", "error", err)
			return nil
		}
		if _, err := engine.EnforceRetention(backup.RetentionPolicyFromConfig(cfg.Backup)); err != nil {
			slog.Warn("retention pass failed", "error", err)
		}
	}
	return nil
}
