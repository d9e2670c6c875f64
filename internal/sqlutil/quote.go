// Package sqlutil provides dialect-aware SQL helpers for relsynth.
package sqlutil

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect names a supported SQL engine. Values match config driver names.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect validates a driver name.
func ParseDialect(driver string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(driver)); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	case "sqlite3":
		return SQLite, nil
	case "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (must be mysql, postgres, or sqlite)", driver)
	}
}

// QuoteIdentifier quotes a MySQL identifier (table name, column name) with backticks.
// It escapes any existing backticks by doubling them.
// Example: "my_table" -> "`my_table`"
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteANSI quotes an identifier with double quotes, as postgres and sqlite expect.
func QuoteANSI(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Quote quotes an identifier for the given dialect.
func (d Dialect) Quote(name string) string {
	if d == MySQL {
		return QuoteIdentifier(name)
	}
	return QuoteANSI(name)
}

// Builder returns a squirrel statement builder with the dialect's placeholder format.
func (d Dialect) Builder() sq.StatementBuilderType {
	if d == Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// validIdentifierRegex restricts identifiers to alphanumerics and underscore.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks if a name only contains alphanumeric characters and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteSafe quotes an identifier after validating it.
// Returns an error if the identifier contains invalid characters.
func (d Dialect) QuoteSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return d.Quote(name), nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
