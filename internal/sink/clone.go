package sink

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/logger"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// ErrCloneUnsupported is returned for dialects without a clone strategy.
var ErrCloneUnsupported = fmt.Errorf("cloning the source database is not supported for this driver")

// CloneSQLiteFile copies the source database file to dst, replacing dst.
// The copy carries the full schema, so the writer only replaces rows.
func CloneSQLiteFile(src, dst string) error {
	if src == dst {
		return fmt.Errorf("clone destination %q is the source database", dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination database: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy database file: %w", err)
	}
	return out.Close()
}

// ClonePostgresDatabase recreates target as a copy of source using
// CREATE DATABASE ... TEMPLATE. admin must be connected to a third database,
// and nothing may be connected to source while the copy runs.
func ClonePostgresDatabase(ctx context.Context, admin *sql.DB, source, target string) error {
	if source == target {
		return fmt.Errorf("clone destination %q is the source database", target)
	}
	d := sqlutil.Postgres
	stmts := []string{
		"DROP DATABASE IF EXISTS " + d.Quote(target),
		"CREATE DATABASE " + d.Quote(target) + " TEMPLATE " + d.Quote(source),
	}
	for _, stmt := range stmts {
		if _, err := admin.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clone failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// CloneSource turns the configured destination into a copy of the source
// database. For PostgreSQL the manager's source connection is closed first.
func CloneSource(ctx context.Context, m *database.Manager, cfg *config.Config, log *logger.Logger) error {
	d, err := sqlutil.ParseDialect(cfg.Source.Driver)
	if err != nil {
		return err
	}

	switch d {
	case sqlutil.SQLite:
		log.Infof("Cloning %s to %s", cfg.Source.Path, cfg.Destination.Path)
		return CloneSQLiteFile(cfg.Source.Path, cfg.Destination.Path)
	case sqlutil.Postgres:
		if err := m.CloseSource(); err != nil {
			return fmt.Errorf("failed to close source connection: %w", err)
		}
		adminCfg := cfg.Source
		adminCfg.Database = "postgres"
		admin, err := m.Open(ctx, &adminCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to maintenance database: %w", err)
		}
		defer admin.Close()

		log.Infof("Cloning database %s to %s", cfg.Source.Database, cfg.Destination.Database)
		return ClonePostgresDatabase(ctx, admin, cfg.Source.Database, cfg.Destination.Database)
	default:
		return fmt.Errorf("%w: %s", ErrCloneUnsupported, d)
	}
}
