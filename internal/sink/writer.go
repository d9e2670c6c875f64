// Package sink writes final tables to a destination database.
package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
	"github.com/dbsmedya/relsynth/internal/logger"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// maxParams bounds the placeholders in one INSERT. SQLite, MySQL and
// PostgreSQL all accept at least 32766.
const maxParams = 32000

// WriteStats contains statistics about a write.
type WriteStats struct {
	TablesWritten int
	RowsWritten   int64
	RowsDeleted   int64
	Duration      time.Duration
	RowsPerTable  map[string]int64
}

// Writer replaces the contents of destination tables with dataset tables.
// Existing rows are deleted children first, new rows are inserted parents
// first, all inside one transaction.
type Writer struct {
	db        *sql.DB
	dialect   sqlutil.Dialect
	graph     *graph.RelationshipGraph
	batchSize int
	logger    *logger.Logger
}

// NewWriter creates a Writer for the destination db.
func NewWriter(db *sql.DB, d sqlutil.Dialect, g *graph.RelationshipGraph, batchSize int, log *logger.Logger) (*Writer, error) {
	if db == nil {
		return nil, fmt.Errorf("destination database is nil")
	}
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Writer{db: db, dialect: d, graph: g, batchSize: batchSize, logger: log}, nil
}

// Write replaces every table of ds in the destination. Tables in the
// destination that are not in ds are left alone.
func (w *Writer) Write(ctx context.Context, ds *dataset.Dataset) (*WriteStats, error) {
	start := time.Now()
	stats := &WriteStats{RowsPerTable: make(map[string]int64)}

	order, relaxed, err := w.loadOrder(ds)
	if err != nil {
		return nil, err
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin destination transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			w.logger.Warn("Rolling back destination transaction due to error")
			if rbErr := tx.Rollback(); rbErr != nil {
				w.logger.Errorf("Failed to rollback transaction: %v", rbErr)
			}
		}
	}()

	if relaxed {
		if err := w.setForeignKeyChecks(ctx, tx, false); err != nil {
			return nil, err
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("write interrupted: %w", err)
		}
		n, err := w.deleteAll(ctx, tx, order[i])
		if err != nil {
			return nil, fmt.Errorf("failed to clear table %s: %w", order[i], err)
		}
		stats.RowsDeleted += n
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("write interrupted: %w", err)
		}
		t, _ := ds.Get(name)
		n, err := w.insertTable(ctx, tx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to write table %s: %w", name, err)
		}
		stats.TablesWritten++
		stats.RowsWritten += n
		stats.RowsPerTable[name] = n
		w.logger.WithTable(name).Debugf("Wrote %d rows", n)
	}

	if relaxed {
		if err := w.setForeignKeyChecks(ctx, tx, true); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit destination transaction: %w", err)
	}
	tx = nil

	stats.Duration = time.Since(start)
	w.logger.Infof("Write complete: %d tables, %d rows (%d replaced), duration: %s",
		stats.TablesWritten, stats.RowsWritten, stats.RowsDeleted, stats.Duration)
	return stats, nil
}

// loadOrder returns the dataset tables parents first. When the dependencies are
// cyclic or self-referencing, no insert order satisfies every constraint, so the
// dataset order is used and relaxed is true.
func (w *Writer) loadOrder(ds *dataset.Dataset) ([]string, bool, error) {
	order, err := w.graph.LoadOrder()
	relaxed := len(w.graph.SelfReferencing()) > 0

	var cycle *graph.CycleError
	switch {
	case errors.As(err, &cycle):
		w.logger.Warnf("Cyclic dependencies among %v, writing in dataset order with deferred constraint checks",
			cycle.Info.CycleParticipants)
		return ds.Names(), true, nil
	case err != nil:
		return nil, false, err
	}

	out := make([]string, 0, ds.Len())
	seen := make(map[string]bool, ds.Len())
	for _, name := range order {
		if _, ok := ds.Get(name); ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range ds.Names() {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out, relaxed, nil
}

func (w *Writer) deleteAll(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	query, args, err := w.dialect.Builder().Delete(w.dialect.Quote(table)).ToSql()
	if err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// insertTable writes t with multi-row INSERTs of at most batchSize rows.
func (w *Writer) insertTable(ctx context.Context, tx *sql.Tx, t *dataset.Table) (int64, error) {
	if t.Len() == 0 || len(t.Columns) == 0 {
		return 0, nil
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = w.dialect.Quote(c)
	}

	batch := w.batchSize
	if limit := maxParams / len(cols); batch > limit {
		batch = limit
	}

	var written int64
	for lo := 0; lo < t.Len(); lo += batch {
		hi := min(lo+batch, t.Len())

		ins := w.dialect.Builder().Insert(w.dialect.Quote(t.Name)).Columns(cols...)
		for _, row := range t.Rows[lo:hi] {
			ins = ins.Values(row...)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return written, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("insert of rows %d-%d failed: %w", lo, hi-1, err)
		}
		written += int64(hi - lo)
	}
	return written, nil
}

// setForeignKeyChecks toggles constraint enforcement for the transaction.
func (w *Writer) setForeignKeyChecks(ctx context.Context, tx *sql.Tx, enable bool) error {
	var query string
	switch w.dialect {
	case sqlutil.MySQL:
		query = "SET FOREIGN_KEY_CHECKS = 0"
		if enable {
			query = "SET FOREIGN_KEY_CHECKS = 1"
		}
	case sqlutil.SQLite:
		if enable {
			// Deferred checks run at commit.
			return nil
		}
		query = "PRAGMA defer_foreign_keys = ON"
	case sqlutil.Postgres:
		if enable {
			return nil
		}
		query = "SET CONSTRAINTS ALL DEFERRED"
	}

	w.logger.Debugf("Foreign key checks: %s", query)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to configure foreign key checks: %w", err)
	}
	return nil
}
