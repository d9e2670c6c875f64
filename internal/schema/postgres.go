package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

type postgresExtractor struct{}

const pgTablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`

const pgColumnsSQL = `SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES',
       EXISTS (
         SELECT 1 FROM information_schema.table_constraints tc
         JOIN information_schema.key_column_usage kcu
           ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
         WHERE tc.constraint_type = 'PRIMARY KEY'
           AND tc.table_schema = c.table_schema
           AND kcu.table_name = c.table_name
           AND kcu.column_name = c.column_name
       ),
       c.ordinal_position
FROM information_schema.columns c
WHERE c.table_schema = current_schema()
ORDER BY c.table_name, c.ordinal_position`

const pgForeignKeysSQL = `SELECT kcu.table_name, kcu.column_name, rkcu.table_name, rkcu.column_name, tc.constraint_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.constraint_schema = kcu.constraint_schema
JOIN information_schema.referential_constraints rc
  ON tc.constraint_name = rc.constraint_name AND tc.constraint_schema = rc.constraint_schema
JOIN information_schema.key_column_usage rkcu
  ON rc.unique_constraint_name = rkcu.constraint_name
 AND rc.unique_constraint_schema = rkcu.constraint_schema
 AND kcu.position_in_unique_constraint = rkcu.ordinal_position
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()
ORDER BY kcu.table_name, tc.constraint_name, kcu.ordinal_position`

func (postgresExtractor) Extract(ctx context.Context, db *sql.DB) (*Schema, error) {
	names, err := queryNames(ctx, db, pgTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	cols, err := scanColumns(ctx, db, pgColumnsSQL)
	if err != nil {
		return nil, err
	}

	fks, err := scanForeignKeys(ctx, db, pgForeignKeysSQL)
	if err != nil {
		return nil, err
	}

	return &Schema{Tables: assembleTables(names, cols), ForeignKeys: fks}, nil
}

func init() {
	Register(sqlutil.Postgres, postgresExtractor{})
}
