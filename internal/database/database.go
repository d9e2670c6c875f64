// Package database manages source and destination connections for relsynth.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// OpenFunc opens a database handle. sql.Open is the default.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Manager handles database connections for source and destination.
type Manager struct {
	Source      *sql.DB
	Destination *sql.DB
	config      *config.Config

	open       OpenFunc
	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config:     cfg,
		open:       sql.Open,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// SourceDialect returns the SQL dialect of the source database.
func (m *Manager) SourceDialect() (sqlutil.Dialect, error) {
	return sqlutil.ParseDialect(m.config.Source.Driver)
}

// DestinationDialect returns the SQL dialect of the destination database.
func (m *Manager) DestinationDialect() (sqlutil.Dialect, error) {
	return sqlutil.ParseDialect(m.config.Destination.Driver)
}

// Connect establishes connections to the source and destination databases.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.ConnectSource(ctx); err != nil {
		return err
	}

	if err := m.ConnectDestination(ctx); err != nil {
		m.Source.Close()
		m.Source = nil
		return err
	}
	return nil
}

// ConnectDestination establishes a connection to the destination database only.
func (m *Manager) ConnectDestination(ctx context.Context) error {
	var err error
	m.Destination, err = m.connectWithRetry(ctx, &m.config.Destination)
	if err != nil {
		return fmt.Errorf("failed to connect to destination database: %w", err)
	}
	return nil
}

// ConnectSource establishes a connection to the source database only.
// Use this when nothing is written back (plan, CSV-only runs).
func (m *Manager) ConnectSource(ctx context.Context) error {
	var err error
	m.Source, err = m.connectWithRetry(ctx, &m.config.Source)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	return nil
}

// CloseSource closes the source connection, if open.
func (m *Manager) CloseSource() error {
	if m.Source == nil {
		return nil
	}
	err := m.Source.Close()
	m.Source = nil
	return err
}

// Open connects to a single database described by cfg, with the manager's retry policy.
// The caller owns the returned handle.
func (m *Manager) Open(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	return m.connectWithRetry(ctx, cfg)
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var err error
	backoff := m.backoff

	for i := 0; i < m.maxRetries; i++ {
		var db *sql.DB
		db, err = m.connect(cfg)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return db, nil
			}
			db.Close()
		}

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", m.maxRetries, err)
}

// connect creates a database handle and configures its pool.
func (m *Manager) connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	driverName, dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := m.open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// A single writer avoids SQLITE_BUSY inside transactions.
		db.SetMaxOpenConns(1)
		return db, nil
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN returns the database/sql driver name and DSN for cfg.
func BuildDSN(cfg *config.DatabaseConfig) (string, string, error) {
	d, err := sqlutil.ParseDialect(cfg.Driver)
	if err != nil {
		return "", "", err
	}
	switch d {
	case sqlutil.MySQL:
		return "mysql", mysqlDSN(cfg), nil
	case sqlutil.Postgres:
		return "pgx", postgresDSN(cfg), nil
	default:
		return "sqlite", sqliteDSN(cfg), nil
	}
}

func mysqlDSN(cfg *config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC

	switch cfg.TLS {
	case "disable":
		mc.TLSConfig = "false"
	case "required":
		mc.TLSConfig = "true"
	default:
		mc.TLSConfig = "preferred"
	}
	return mc.FormatDSN()
}

func postgresDSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}

	q := url.Values{}
	switch cfg.TLS {
	case "disable":
		q.Set("sslmode", "disable")
	case "required":
		q.Set("sslmode", "require")
	default:
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func sqliteDSN(cfg *config.DatabaseConfig) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Close closes all database connections gracefully.
func (m *Manager) Close() error {
	var errs []error

	if m.Destination != nil {
		if err := m.Destination.Close(); err != nil {
			errs = append(errs, fmt.Errorf("destination close: %w", err))
		}
	}

	if m.Source != nil {
		if err := m.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Ping verifies all open connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source != nil {
		if err := m.Source.PingContext(ctx); err != nil {
			return fmt.Errorf("source ping failed: %w", err)
		}
	}

	if m.Destination != nil {
		if err := m.Destination.PingContext(ctx); err != nil {
			return fmt.Errorf("destination ping failed: %w", err)
		}
	}

	return nil
}
