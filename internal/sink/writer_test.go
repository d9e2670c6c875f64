package sink

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
	"github.com/dbsmedya/relsynth/internal/logger"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

func shopGraph(t *testing.T) *graph.RelationshipGraph {
	t.Helper()
	g, err := graph.NewBuilder().
		AddTable("customers", "id").
		AddTable("orders", "id").
		AddReference(graph.KeyRef{Table: "customers", Column: "id"}, graph.KeyRef{Table: "orders", Column: "customer_id"}).
		Build()
	require.NoError(t, err)
	return g
}

func table(name string, cols []string, rows ...[]any) *dataset.Table {
	t := dataset.NewTable(name, cols)
	for _, r := range rows {
		_ = t.AppendRow(r)
	}
	return t
}

// shopDataset lists orders first so the writer has to reorder.
func shopDataset() *dataset.Dataset {
	ds := dataset.New()
	ds.Set(table("orders", []string{"id", "customer_id", "total"},
		[]any{int64(0), int64(1), 9.5},
		[]any{int64(1), int64(0), 3.0}))
	ds.Set(table("customers", []string{"id", "name"},
		[]any{int64(0), "ann"}, []any{int64(1), "bob"}))
	return ds
}

func TestNewWriter_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewWriter(nil, sqlutil.MySQL, shopGraph(t), 10, nil)
	assert.Error(t, err)
	_, err = NewWriter(db, sqlutil.MySQL, nil, 10, nil)
	assert.Error(t, err)

	w, err := NewWriter(db, sqlutil.MySQL, shopGraph(t), 0, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 500, w.batchSize)
}

func TestWrite_OrderAndBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `orders`")).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `customers`")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `customers` (`id`,`name`)")).
		WithArgs(int64(0), "ann").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `customers` (`id`,`name`)")).
		WithArgs(int64(1), "bob").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders` (`id`,`customer_id`,`total`)")).
		WithArgs(int64(0), int64(1), 9.5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders` (`id`,`customer_id`,`total`)")).
		WithArgs(int64(1), int64(0), 3.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w, err := NewWriter(db, sqlutil.MySQL, shopGraph(t), 1, logger.NewNop())
	require.NoError(t, err)

	stats, err := w.Write(context.Background(), shopDataset())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TablesWritten)
	assert.Equal(t, int64(4), stats.RowsWritten)
	assert.Equal(t, int64(6), stats.RowsDeleted)
	assert.Equal(t, int64(2), stats.RowsPerTable["orders"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_MultiRowInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := dataset.New()
	ds.Set(table("customers", []string{"id", "name"},
		[]any{int64(0), "ann"}, []any{int64(1), nil}))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `customers`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("VALUES (?,?),(?,?)")).
		WithArgs(int64(0), "ann", int64(1), nil).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	w, err := NewWriter(db, sqlutil.MySQL, shopGraph(t), 100, logger.NewNop())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), ds)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_RollbackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `orders`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `customers`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `customers`").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	w, err := NewWriter(db, sqlutil.MySQL, shopGraph(t), 10, logger.NewNop())
	require.NoError(t, err)

	_, err = w.Write(context.Background(), shopDataset())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to write table customers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_CycleRelaxesChecks(t *testing.T) {
	g, err := graph.NewBuilder().
		AddTable("a", "id").
		AddTable("b", "id").
		AddReference(graph.KeyRef{Table: "a", Column: "id"}, graph.KeyRef{Table: "b", Column: "a_id"}).
		AddReference(graph.KeyRef{Table: "b", Column: "id"}, graph.KeyRef{Table: "a", Column: "b_id"}).
		Build()
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := dataset.New()
	ds.Set(table("a", []string{"id", "b_id"}, []any{int64(0), int64(0)}))
	ds.Set(table("b", []string{"id", "a_id"}, []any{int64(0), int64(0)}))

	mock.ExpectBegin()
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `b`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `a`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO `a`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `b`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	w, err := NewWriter(db, sqlutil.MySQL, g, 10, logger.NewNop())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), ds)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrite_CanceledContext(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, err := NewWriter(db, sqlutil.MySQL, shopGraph(t), 10, logger.NewNop())
	require.NoError(t, err)

	// BeginTx itself fails on a canceled context.
	_, err = w.Write(ctx, shopDataset())
	assert.ErrorIs(t, err, context.Canceled)
}

func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWrite_SQLiteReplacesRows(t *testing.T) {
	db := openSQLite(t, filepath.Join(t.TempDir(), "shop.db"))
	_, err := db.Exec(`
		CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id), total REAL);
		INSERT INTO customers VALUES (10, 'old');
		INSERT INTO orders VALUES (20, 10, 1.0);
	`)
	require.NoError(t, err)

	w, err := NewWriter(db, sqlutil.SQLite, shopGraph(t), 1, logger.NewNop())
	require.NoError(t, err)

	stats, err := w.Write(context.Background(), shopDataset())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RowsDeleted)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders WHERE customer_id IN (SELECT id FROM customers)").Scan(&n))
	assert.Equal(t, 2, n)
	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM customers WHERE id = 1").Scan(&name))
	assert.Equal(t, "bob", name)
}

func TestWrite_SQLiteSelfReference(t *testing.T) {
	db := openSQLite(t, filepath.Join(t.TempDir(), "staff.db"))
	_, err := db.Exec(`CREATE TABLE employees (id INTEGER PRIMARY KEY, manager_id INTEGER REFERENCES employees(id))`)
	require.NoError(t, err)

	g, err := graph.NewBuilder().
		AddTable("employees", "id").
		AddReference(graph.KeyRef{Table: "employees", Column: "id"}, graph.KeyRef{Table: "employees", Column: "manager_id"}).
		Build()
	require.NoError(t, err)

	ds := dataset.New()
	ds.Set(table("employees", []string{"id", "manager_id"},
		[]any{int64(0), int64(1)}, []any{int64(1), nil}))

	w, err := NewWriter(db, sqlutil.SQLite, g, 1, logger.NewNop())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), ds)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM employees").Scan(&n))
	assert.Equal(t, 2, n)
}
