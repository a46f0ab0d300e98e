package repositories

import (
	"fmt"
	"strings"
)

// Dialect selects the bind-parameter syntax for SQL statements.
type Dialect int

const (
	Postgres Dialect = iota
	Sqlite
)

func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite":
		return Sqlite, nil
	default:
		return Postgres, fmt.Errorf("unsupported sql dialect %q", driver)
	}
}

// bind returns the placeholder for the n-th (1-based) parameter.
func (d Dialect) bind(n int) string {
	if d == Sqlite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}
