package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonesy/jobscraps/internal/config"
)

var version = "dev"

var (
	configPath string
	useWorking bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "jobscraps",
	Short: "Scrape, deduplicate and archive job postings",
	Long: `jobscraps maintains a PostgreSQL database of scraped job postings:
it runs configured searches, resolves duplicates, prunes unwanted rows
and keeps a bounded archive of compressed snapshots.

Most commands accept --working to operate on the disposable working copy
instead of the primary database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/jobscraps.json", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&useWorking, "working", false, "operate on the working copy instead of the primary database")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Version = version
}

// loadConfig reads the configuration and initialises logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	return cfg, nil
}

// target returns the database the current invocation operates on.
func target() config.Target {
	if useWorking {
		return config.TargetWorking
	}
	return config.TargetPrimary
}

func targetLabel(cfg config.Config) string {
	return fmt.Sprintf("%s (%s)", cfg.Database(target()).Name, target())
}
