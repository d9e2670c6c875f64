package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

type mysqlExtractor struct{}

const mysqlTablesSQL = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

const mysqlColumnsSQL = `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE = 'YES', COLUMN_KEY = 'PRI', ORDINAL_POSITION
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE()
ORDER BY TABLE_NAME, ORDINAL_POSITION`

const mysqlForeignKeysSQL = `SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME, CONSTRAINT_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`

func (mysqlExtractor) Extract(ctx context.Context, db *sql.DB) (*Schema, error) {
	names, err := queryNames(ctx, db, mysqlTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	cols, err := scanColumns(ctx, db, mysqlColumnsSQL)
	if err != nil {
		return nil, err
	}

	fks, err := scanForeignKeys(ctx, db, mysqlForeignKeysSQL)
	if err != nil {
		return nil, err
	}

	return &Schema{Tables: assembleTables(names, cols), ForeignKeys: fks}, nil
}

// scanColumns reads (table, column, type, nullable, pk, position) rows.
func scanColumns(ctx context.Context, db *sql.DB, query string) (map[string][]Column, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	cols := make(map[string][]Column)
	for rows.Next() {
		var table string
		var c Column
		if err := rows.Scan(&table, &c.Name, &c.Type, &c.Nullable, &c.PrimaryKey, &c.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[table] = append(cols[table], c)
	}
	return cols, rows.Err()
}

// scanForeignKeys reads (table, column, ref table, ref column, constraint) rows.
func scanForeignKeys(ctx context.Context, db *sql.DB, query string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable, &fk.RefColumn, &fk.Constraint); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func init() {
	Register(sqlutil.MySQL, mysqlExtractor{})
}
