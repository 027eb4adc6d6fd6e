package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/jonesy/jobscraps/internal/config"
)

// maintenanceDatabases are tried in order when a connection outside the
// source database is needed (template copies require no open sessions on
// the source from this side).
var maintenanceDatabases = []string{"postgres", "template1"}

// CloneDatabase drops the target database if it exists and recreates it as
// a server-side template copy of the source. The caller must have closed
// any Store bound to the source database first.
//
// This is a read-only operation with respect to the source: the server
// copies data files directly and the source is never modified.
func CloneDatabase(ctx context.Context, server config.DatabaseConfig, source, target string) error {
	if source == target {
		return fmt.Errorf("cannot clone %q onto itself", source)
	}

	conn, err := connectMaintenance(ctx, server)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	// Database names cannot be bound parameters; both come from validated
	// configuration, not user input.
	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %q", target)); err != nil {
		return fmt.Errorf("dropping existing %s: %w", target, err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %q WITH TEMPLATE %q OWNER %q", target, source, server.User)); err != nil {
		return fmt.Errorf("cloning %s into %s: %w", source, target, err)
	}

	slog.Info("working copy created", "source", source, "target", target)
	return nil
}

func connectMaintenance(ctx context.Context, server config.DatabaseConfig) (*pgx.Conn, error) {
	var lastErr error
	for _, name := range maintenanceDatabases {
		conn, err := pgx.Connect(ctx, server.WithName(name).URL())
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("connecting to maintenance database: %w", lastErr)
}
