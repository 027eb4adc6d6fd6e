package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonesy/jobscraps/internal/config"
)

// ErrBackupFailed wraps dump failures that exhausted all retry attempts.
// Callers guarding destructive operations must treat it as blocking unless
// the operator explicitly overrides.
var ErrBackupFailed = errors.New("backup failed")

// Engine creates and restores snapshots for one database target. It is not
// safe for concurrent invocation against the same database; the policy
// layer guarantees a single in-flight backup per target.
type Engine struct {
	runner DumpRunner
	db     config.DatabaseConfig
	dir    string

	attempts   int
	retryDelay time.Duration
	cmdTimeout time.Duration

	now        func() time.Time
	removeFile func(string) error
}

// NewEngine builds an Engine for the given database. runner may be a fake
// in tests; pass ExecRunner{} for real use.
func NewEngine(runner DumpRunner, db config.DatabaseConfig, cfg config.BackupConfig) *Engine {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Engine{
		runner:     runner,
		db:         db,
		dir:        cfg.Dir,
		attempts:   attempts,
		retryDelay: cfg.RetryDelay(),
		cmdTimeout: cfg.CommandTimeout(),
		now:        time.Now,
		removeFile: os.Remove,
	}
}

// Dir returns the archive directory this engine writes to.
func (e *Engine) Dir() string { return e.dir }

// Create dumps the database into a new compressed snapshot, records it in
// the manifest and returns its metadata. Transient dump failures are
// retried with a fixed delay; a timed-out or failed attempt leaves neither
// a partial file nor a manifest entry.
func (e *Engine) Create(ctx context.Context, kind Kind, reason string) (Snapshot, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("creating archive directory: %w", err)
	}

	createdAt := e.now().UTC()
	filename := snapshotFilename(e.db.Name, createdAt, kind, reason)
	path := filepath.Join(e.dir, filename)

	slog.Info("creating snapshot", "database", e.db.Name, "file", filename, "reason", reason)
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		lastErr = e.dumpOnce(ctx, path)
		if lastErr == nil {
			break
		}
		os.Remove(path) // never leave a partial artifact behind
		slog.Warn("dump attempt failed", "attempt", attempt, "database", e.db.Name, "error", lastErr)
		if attempt < e.attempts {
			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return Snapshot{}, ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return Snapshot{}, fmt.Errorf("%w: %s after %d attempts: %v", ErrBackupFailed, e.db.Name, e.attempts, lastErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sizing snapshot %s: %w", filename, err)
	}

	snap := Snapshot{
		Filename:  filename,
		Database:  e.db.Name,
		SizeBytes: info.Size(),
		CreatedAt: createdAt,
		Kind:      kind,
		Reason:    reason,
	}

	m, err := LoadManifest(e.dir)
	if err != nil {
		return Snapshot{}, err
	}
	m.Add(snap)
	if err := m.Save(e.dir); err != nil {
		return Snapshot{}, err
	}

	slog.Info("snapshot created",
		"file", filename,
		"size_mb", fmt.Sprintf("%.1f", float64(snap.SizeBytes)/(1024*1024)),
		"duration", time.Since(start).Round(100*time.Millisecond))
	return snap, nil
}

func (e *Engine) dumpOnce(ctx context.Context, path string) error {
	dumpCtx, cancel := context.WithTimeout(ctx, e.cmdTimeout)
	defer cancel()
	return e.runner.Dump(dumpCtx, e.db, path)
}

// List returns all snapshots in the manifest, newest first.
func (e *Engine) List() ([]Snapshot, error) {
	m, err := LoadManifest(e.dir)
	if err != nil {
		return nil, err
	}
	return m.NewestFirst(), nil
}
