package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// Snapshot reads every listed table in full. Rows are ordered by the single
// primary key when the table has one, so repeated snapshots are stable.
func Snapshot(ctx context.Context, db *sql.DB, d sqlutil.Dialect, s *Schema, tables []string) (*dataset.Dataset, error) {
	ds := dataset.New()
	for _, name := range tables {
		t, ok := s.Table(name)
		if !ok {
			return nil, fmt.Errorf("snapshot: table %q not in schema", name)
		}
		data, err := snapshotTable(ctx, db, d, t)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		ds.Set(data)
	}
	return ds, nil
}

func snapshotTable(ctx context.Context, db *sql.DB, d sqlutil.Dialect, t *Table) (*dataset.Table, error) {
	names := t.ColumnNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.Quote(n)
	}

	q := d.Builder().Select(quoted...).From(d.Quote(t.Name))
	if pk := t.PrimaryKey(); len(pk) == 1 {
		q = q.OrderBy(d.Quote(pk[0]))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := dataset.NewTable(t.Name, names)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = dataset.Normalize(v)
		}
		out.Rows = append(out.Rows, values)
	}
	return out, rows.Err()
}
