package sink

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/logger"
)

func TestCloneSQLiteFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shop.db")
	db := openSQLite(t, src)
	_, err := db.Exec(`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dst := filepath.Join(dir, "out", "synthetic.db")
	require.NoError(t, CloneSQLiteFile(src, dst))

	copied := openSQLite(t, dst)
	var n int
	require.NoError(t, copied.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'customers'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCloneSQLiteFile_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, CloneSQLiteFile(filepath.Join(dir, "a.db"), filepath.Join(dir, "a.db")))

	err := CloneSQLiteFile(filepath.Join(dir, "missing.db"), filepath.Join(dir, "b.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClonePostgresDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DROP DATABASE IF EXISTS "shop_synth"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "shop_synth" TEMPLATE "shop"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ClonePostgresDatabase(context.Background(), db, "shop", "shop_synth"))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, ClonePostgresDatabase(context.Background(), db, "shop", "shop"))
}

func TestCloneSource_MySQLUnsupported(t *testing.T) {
	cfg := config.DefaultConfig()
	err := CloneSource(context.Background(), database.NewManager(cfg), cfg, logger.NewNop())
	assert.ErrorIs(t, err, ErrCloneUnsupported)
}

func TestCloneSource_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Source = config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "src.db")}
	cfg.Destination = config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "dst.db")}
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte("not really a database"), 0o644))

	require.NoError(t, CloneSource(context.Background(), database.NewManager(cfg), cfg, logger.NewNop()))

	got, err := os.ReadFile(cfg.Destination.Path)
	require.NoError(t, err)
	assert.Equal(t, "not really a database", string(got))
}
