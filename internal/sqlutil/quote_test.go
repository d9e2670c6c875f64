package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input    string
		expected Dialect
		wantErr  bool
	}{
		{"mysql", MySQL, false},
		{"MySQL", MySQL, false},
		{"postgres", Postgres, false},
		{"postgresql", Postgres, false},
		{"pgx", Postgres, false},
		{"sqlite", SQLite, false},
		{"sqlite3", SQLite, false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDialect(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		input    string
		expected string
	}{
		{"mysql simple", MySQL, "users", "`users`"},
		{"mysql backtick", MySQL, "my`table", "`my``table`"},
		{"postgres simple", Postgres, "order_items", `"order_items"`},
		{"postgres embedded quote", Postgres, `a"b`, `"a""b"`},
		{"sqlite simple", SQLite, "Items", `"Items"`},
		{"empty", SQLite, "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.Quote(tt.input))
		})
	}
}

func TestQuoteSafe(t *testing.T) {
	q, err := MySQL.QuoteSafe("orders")
	require.NoError(t, err)
	assert.Equal(t, "`orders`", q)

	_, err = Postgres.QuoteSafe("orders; DROP TABLE x")
	require.Error(t, err)
	var invalid *InvalidIdentifierError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, "orders; DROP TABLE x", invalid.Name)
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, IsValidIdentifier("order_items_2"))
	assert.False(t, IsValidIdentifier(""))
	assert.False(t, IsValidIdentifier("a-b"))
	assert.False(t, IsValidIdentifier("a.b"))
}

func TestBuilderPlaceholders(t *testing.T) {
	sqlStr, args, err := Postgres.Builder().Select("*").From(`"orders"`).Where("id = ?", 5).ToSql()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "orders" WHERE id = $1`, sqlStr)
	assert.Equal(t, []interface{}{5}, args)

	sqlStr, _, err = MySQL.Builder().Select("*").From("`orders`").Where("id = ?", 5).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `orders` WHERE id = ?", sqlStr)
}
