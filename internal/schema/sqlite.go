package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

type sqliteExtractor struct{}

func (sqliteExtractor) Extract(ctx context.Context, db *sql.DB) (*Schema, error) {
	names, err := queryNames(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	s := &Schema{}
	for _, name := range names {
		t, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, t)
	}

	for i := range s.Tables {
		fks, err := sqliteForeignKeys(ctx, db, s, s.Tables[i].Name)
		if err != nil {
			return nil, err
		}
		s.ForeignKeys = append(s.ForeignKeys, fks...)
	}
	return s, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) (Table, error) {
	t := Table{Name: table}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlutil.QuoteANSI(table)))
	if err != nil {
		return t, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return t, fmt.Errorf("scan column for %s: %w", table, err)
		}
		t.Columns = append(t.Columns, Column{
			Name:       name,
			Type:       ctype,
			Nullable:   notnull == 0,
			PrimaryKey: pk != 0,
			Position:   cid + 1,
		})
	}
	return t, rows.Err()
}

func sqliteForeignKeys(ctx context.Context, db *sql.DB, s *Schema, table string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqlutil.QuoteANSI(table)))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var id, seq int
		var refTable, from string
		var to, onUpdate, onDelete, match sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign key for %s: %w", table, err)
		}

		refColumn := to.String
		if !to.Valid || refColumn == "" {
			// REFERENCES parent without a column list targets the parent's primary key
			if parent, ok := s.Table(refTable); ok {
				if pk := parent.PrimaryKey(); len(pk) > seq {
					refColumn = pk[seq]
				}
			}
		}
		if refColumn == "" {
			return nil, fmt.Errorf("foreign key %s.%s references %s without a resolvable column", table, from, refTable)
		}

		fks = append(fks, ForeignKey{
			Table:      table,
			Column:     from,
			RefTable:   refTable,
			RefColumn:  refColumn,
			Constraint: fmt.Sprintf("fk_%s_%d", table, id),
		})
	}
	return fks, rows.Err()
}

func queryNames(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func init() {
	Register(sqlutil.SQLite, sqliteExtractor{})
}
