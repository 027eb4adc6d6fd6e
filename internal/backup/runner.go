package backup

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/jonesy/jobscraps/internal/config"
)

// DumpRunner is the subprocess boundary to the database engine's dump and
// restore utilities. Injecting it lets the engines be tested without real
// pg_dump/psql invocations.
type DumpRunner interface {
	// Dump writes a compressed dump of the database to outPath.
	Dump(ctx context.Context, db config.DatabaseConfig, outPath string) error
	// Restore replays the dump at inPath into the database.
	Restore(ctx context.Context, db config.DatabaseConfig, inPath string) error
}

// ExecRunner shells out to pg_dump and psql over the network. Only the exit
// status and the produced file matter; the dump wire format belongs to
// PostgreSQL.
type ExecRunner struct{}

func (ExecRunner) Dump(ctx context.Context, db config.DatabaseConfig, outPath string) error {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", db.Host,
		"-p", strconv.Itoa(db.Port),
		"-U", db.User,
		"-d", db.Name,
		"--compress=9",
		"--file", outPath,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+db.Password)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pg_dump %s: %w: %s", db.Name, err, firstLine(out))
	}
	return nil
}

// Restore streams the decompressed dump into psql. psql does not understand
// gzip and, left to its defaults, exits 0 even when every statement fails to
// parse; decompressing here and setting ON_ERROR_STOP turns any failure into
// a non-zero exit instead of a silent no-op restore.
func (ExecRunner) Restore(ctx context.Context, db config.DatabaseConfig, inPath string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening dump %s: %w", inPath, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("dump %s is not valid gzip: %w", inPath, err)
	}
	defer zr.Close()

	cmd := exec.CommandContext(ctx, "psql",
		"-h", db.Host,
		"-p", strconv.Itoa(db.Port),
		"-U", db.User,
		"-d", db.Name,
		"-v", "ON_ERROR_STOP=1",
		"--quiet",
	)
	cmd.Stdin = zr
	cmd.Env = append(os.Environ(), "PGPASSWORD="+db.Password)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("psql restore into %s: %w: %s", db.Name, err, firstLine(out))
	}
	return nil
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
