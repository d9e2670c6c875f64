// Package lock guards a destination database against concurrent relsynth
// runs with a server-side advisory lock.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// ErrLockHeld is returned when another run holds the destination lock.
var ErrLockHeld = errors.New("destination lock is held by another run")

// Timeouts for Acquire, in seconds. Postgres ignores them and never waits.
const (
	TimeoutImmediate = 0
	TimeoutShort     = 1
	TimeoutMedium    = 10
)

// AdvisoryLock is a named lock held on one pinned connection. GET_LOCK and
// pg_advisory_lock are owned by the session, so acquire and release must
// run on the same connection rather than on the pool.
type AdvisoryLock struct {
	conn    *sql.Conn
	dialect sqlutil.Dialect
	name    string
	held    bool
}

// Name builds the lock name for a destination database.
// Example: Name("shop synthetic") -> "relsynth:dest:shop_synthetic"
func Name(database string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, database)
	return "relsynth:dest:" + sanitized
}

// Acquire takes the lock on a dedicated connection. SQLite has no advisory
// locks; its own file locking serializes writers, so a no-op lock is returned.
// Returns ErrLockHeld when another session holds the lock.
func Acquire(ctx context.Context, db *sql.DB, d sqlutil.Dialect, name string, timeoutSeconds int) (*AdvisoryLock, error) {
	l := &AdvisoryLock{dialect: d, name: name}
	if d == sqlutil.SQLite {
		l.held = true
		return l, nil
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection for lock %q: %w", name, err)
	}

	var result sql.NullInt64
	switch d {
	case sqlutil.MySQL:
		err = conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, timeoutSeconds).Scan(&result)
	case sqlutil.Postgres:
		var ok bool
		err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", name).Scan(&ok)
		result = sql.NullInt64{Valid: true}
		if ok {
			result.Int64 = 1
		}
	default:
		err = fmt.Errorf("unsupported dialect %q", d)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}

	switch {
	case !result.Valid:
		conn.Close()
		return nil, fmt.Errorf("GET_LOCK returned NULL for lock %q", name)
	case result.Int64 != 1:
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, name)
	}

	l.conn = conn
	l.held = true
	return l, nil
}

// Release drops the lock and returns the pinned connection to the pool.
// Releasing a lock that is not held is a no-op.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()

	var err error
	switch l.dialect {
	case sqlutil.MySQL:
		var result sql.NullInt64
		err = l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.name).Scan(&result)
	case sqlutil.Postgres:
		var ok bool
		err = l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", l.name).Scan(&ok)
	}
	if err != nil {
		return fmt.Errorf("failed to release lock %q: %w", l.name, err)
	}
	return nil
}

// IsHeld reports whether this instance holds the lock.
func (l *AdvisoryLock) IsHeld() bool {
	return l.held
}

// LockName returns the lock name.
func (l *AdvisoryLock) LockName() string {
	return l.name
}

// WithLock runs fn while holding the named lock. The lock is released even
// if fn panics; release uses a fresh context so a cancelled run still unlocks.
func WithLock(ctx context.Context, db *sql.DB, d sqlutil.Dialect, name string, timeoutSeconds int, fn func() error) error {
	l, err := Acquire(ctx, db, d, name, timeoutSeconds)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx) // closing the connection releases it anyway
	}()

	return fn()
}
