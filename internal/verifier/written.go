package verifier

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// Method defines how written tables are compared with the dataset.
type Method string

const (
	// MethodCount compares row counts (fast).
	MethodCount Method = "count"
	// MethodSHA256 compares an order-independent hash of every row.
	MethodSHA256 Method = "sha256"
	// MethodSkip skips the comparison.
	MethodSkip Method = "skip"
)

// ParseMethod validates a method name. Empty selects MethodCount.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case "":
		return MethodCount, nil
	case MethodCount, MethodSHA256, MethodSkip:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported verification method %q (must be count, sha256, or skip)", s)
	}
}

// VerifyWritten compares each table of ds with its copy in db.
func (v *Verifier) VerifyWritten(ctx context.Context, db *sql.DB, d sqlutil.Dialect, ds *dataset.Dataset, method Method) (*Report, error) {
	r := &Report{}
	if method == MethodSkip {
		v.logger.Info("Verification of written tables SKIPPED (method=skip)")
		return r, nil
	}

	for _, name := range ds.Names() {
		if err := ctx.Err(); err != nil {
			return r, fmt.Errorf("verification interrupted: %w", err)
		}
		t, _ := ds.Get(name)
		r.TablesChecked++
		r.RowsChecked += int64(t.Len())

		switch method {
		case MethodCount:
			n, err := countRows(ctx, db, d, name)
			if err != nil {
				return r, fmt.Errorf("failed to count %s: %w", name, err)
			}
			if n != int64(t.Len()) {
				r.add(name, "", IssueRowCount, "count mismatch: expected=%d, written=%d", t.Len(), n)
			}
		case MethodSHA256:
			want, wantRows := hashTable(t.Columns, t.Rows)
			got, gotRows, err := hashDBTable(ctx, db, d, t)
			if err != nil {
				return r, fmt.Errorf("failed to hash %s: %w", name, err)
			}
			switch {
			case wantRows != gotRows:
				r.add(name, "", IssueRowCount, "count mismatch: expected=%d, written=%d", wantRows, gotRows)
			case want != got:
				r.add(name, "", IssueMismatch, "hash mismatch: expected=%s, written=%s", want[:16], got[:16])
			}
		default:
			return r, fmt.Errorf("unsupported verification method: %s", method)
		}
	}

	if r.OK() {
		v.logger.Infof("Written tables verified (method=%s): %d tables, %d rows", method, r.TablesChecked, r.RowsChecked)
	}
	return r, nil
}

func countRows(ctx context.Context, db *sql.DB, d sqlutil.Dialect, table string) (int64, error) {
	query, args, err := d.Builder().Select("COUNT(*)").From(d.Quote(table)).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func hashDBTable(ctx context.Context, db *sql.DB, d sqlutil.Dialect, t *dataset.Table) (string, int64, error) {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.Quote(c)
	}
	query, args, err := d.Builder().Select(cols...).From(d.Quote(t.Name)).ToSql()
	if err != nil {
		return "", 0, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var data [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", 0, fmt.Errorf("failed to scan row: %w", err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("error iterating rows: %w", err)
	}

	h, n := hashTable(t.Columns, data)
	return h, n, nil
}

// hashTable hashes the serialized rows in sorted order, so row order does not matter.
func hashTable(columns []string, rows [][]any) (string, int64) {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = serializeRow(columns, row)
	}
	sort.Strings(lines)

	hasher := sha256.New()
	for _, l := range lines {
		hasher.Write([]byte(l))
		hasher.Write([]byte("\n"))
	}
	return hex.EncodeToString(hasher.Sum(nil)), int64(len(rows))
}

// serializeRow renders col1=val1\x00col2=val2 with NULL spelled out.
func serializeRow(columns []string, values []any) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		val := "NULL"
		if values[i] != nil {
			val = dataset.Format(dataset.Normalize(values[i]))
		}
		parts[i] = col + "=" + val
	}
	return strings.Join(parts, "\x00")
}
