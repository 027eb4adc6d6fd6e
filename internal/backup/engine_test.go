package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesy/jobscraps/internal/config"
)

// fakeRunner scripts dump outcomes per attempt and records restore calls.
type fakeRunner struct {
	dumpCalls    int
	failDumps    int
	dumpContent  []byte
	restoreCalls []string
	restoreErr   error
}

func (f *fakeRunner) Dump(ctx context.Context, db config.DatabaseConfig, outPath string) error {
	f.dumpCalls++
	if f.dumpCalls <= f.failDumps {
		return errors.New("connection reset")
	}
	content := f.dumpContent
	if content == nil {
		content = []byte("-- PostgreSQL database dump\n")
	}
	return os.WriteFile(outPath, content, 0o644)
}

func (f *fakeRunner) Restore(ctx context.Context, db config.DatabaseConfig, inPath string) error {
	f.restoreCalls = append(f.restoreCalls, inPath)
	return f.restoreErr
}

func testEngine(t *testing.T, runner DumpRunner) *Engine {
	t.Helper()
	cfg := config.BackupConfig{
		Dir:                   t.TempDir(),
		RetryAttempts:         3,
		RetryDelaySeconds:     0,
		CommandTimeoutSeconds: 10,
		MaxCount:              48,
		TargetCount:           44,
		MaxSizeGB:             4.8,
		TargetSizeGB:          4.5,
	}
	db := config.DatabaseConfig{Host: "localhost", Port: 5432, Name: "jobscraps", User: "postgres"}
	e := NewEngine(runner, db, cfg)
	e.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }
	return e
}

func TestEngine_CreateWritesFileAndManifest(t *testing.T) {
	runner := &fakeRunner{}
	e := testEngine(t, runner)

	snap, err := e.Create(context.Background(), KindAuto, ReasonPostScraping)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if snap.Filename != "jobscraps_20260829_100000_auto_post_scraping.sql.gz" {
		t.Errorf("Filename = %s", snap.Filename)
	}
	if snap.SizeBytes == 0 {
		t.Error("SizeBytes = 0, want the dump's size")
	}
	if _, err := os.Stat(filepath.Join(e.Dir(), snap.Filename)); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}

	listed, err := e.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 1 || listed[0].Filename != snap.Filename {
		t.Errorf("List() = %+v, want the created snapshot", listed)
	}
}

func TestEngine_CreateRetriesTransientFailure(t *testing.T) {
	runner := &fakeRunner{failDumps: 2}
	e := testEngine(t, runner)

	if _, err := e.Create(context.Background(), KindManual, ReasonManual); err != nil {
		t.Fatalf("Create() error = %v, want success after retries", err)
	}
	if runner.dumpCalls != 3 {
		t.Errorf("dump attempts = %d, want 3", runner.dumpCalls)
	}
}

func TestEngine_CreateExhaustedRetriesFails(t *testing.T) {
	runner := &fakeRunner{failDumps: 99}
	e := testEngine(t, runner)

	_, err := e.Create(context.Background(), KindAuto, ReasonDeletion)
	if !errors.Is(err, ErrBackupFailed) {
		t.Fatalf("Create() error = %v, want ErrBackupFailed", err)
	}
	if runner.dumpCalls != 3 {
		t.Errorf("dump attempts = %d, want 3", runner.dumpCalls)
	}

	// Neither a partial file nor a manifest entry survives.
	entries, err := os.ReadDir(e.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("archive dir not empty after failed backup: %v", entries)
	}
}

func TestEngine_RestoreRequiresToken(t *testing.T) {
	runner := &fakeRunner{}
	e := testEngine(t, runner)
	snap, err := e.Create(context.Background(), KindManual, ReasonManual)
	if err != nil {
		t.Fatal(err)
	}

	for _, confirm := range []string{"", "restore", "YES", "Restore"} {
		if err := e.Restore(context.Background(), snap.Filename, confirm); !errors.Is(err, ErrConfirmationRequired) {
			t.Errorf("Restore(confirm=%q) error = %v, want ErrConfirmationRequired", confirm, err)
		}
	}
	if len(runner.restoreCalls) != 0 {
		t.Fatalf("restore ran %d times without confirmation", len(runner.restoreCalls))
	}

	if err := e.Restore(context.Background(), snap.Filename, ConfirmRestoreToken); err != nil {
		t.Fatalf("Restore() with token error = %v", err)
	}
	if len(runner.restoreCalls) != 1 {
		t.Errorf("restore calls = %d, want 1", len(runner.restoreCalls))
	}
}

func TestEngine_RestoreMissingSnapshotFails(t *testing.T) {
	runner := &fakeRunner{}
	e := testEngine(t, runner)
	err := e.Restore(context.Background(), "absent.sql.gz", ConfirmRestoreToken)
	if err == nil {
		t.Fatal("Restore() of missing snapshot: expected error, got nil")
	}
	if len(runner.restoreCalls) != 0 {
		t.Error("restore ran against a missing snapshot file")
	}
}

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEngine_VerifyIntegrity(t *testing.T) {
	runner := &fakeRunner{dumpContent: gzipBytes(t, "--\n-- PostgreSQL database dump\n--\n")}
	e := testEngine(t, runner)
	snap, err := e.Create(context.Background(), KindManual, ReasonManual)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.VerifyIntegrity(snap.Filename); err != nil {
		t.Fatalf("VerifyIntegrity() error = %v", err)
	}

	m, err := LoadManifest(e.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if !m.Entries[snap.Filename].Verified {
		t.Error("snapshot not marked verified in manifest")
	}
}

func TestEngine_VerifyIntegrityRejectsGarbage(t *testing.T) {
	e := testEngine(t, &fakeRunner{})
	if err := os.MkdirAll(e.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}

	notGzip := filepath.Join(e.Dir(), "corrupt.sql.gz")
	if err := os.WriteFile(notGzip, []byte("plain text, not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.VerifyIntegrity("corrupt.sql.gz"); err == nil {
		t.Error("VerifyIntegrity() on non-gzip file: expected error, got nil")
	}

	noHeader := filepath.Join(e.Dir(), "empty.sql.gz")
	if err := os.WriteFile(noHeader, gzipBytes(t, "nothing resembling a dump\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.VerifyIntegrity("empty.sql.gz"); err == nil {
		t.Error("VerifyIntegrity() on headerless dump: expected error, got nil")
	}
}
