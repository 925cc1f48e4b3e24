package query

import "regexp"

// Dialect identifies the SQL flavor a statement is rendered for.
// Statements are authored with PostgreSQL-style $N placeholders and
// rebound for drivers that expect a different form.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Rebind rewrites $N placeholders into the dialect's positional form.
// SQLite's ?NNN form keeps explicit indexes, so reused or reordered
// placeholders bind the same arguments as they do under PostgreSQL.
func (d Dialect) Rebind(sql string) string {
	if d != SQLite {
		return sql
	}
	return placeholderPattern.ReplaceAllString(sql, "?$1")
}

// ContainsOperator returns the case-insensitive pattern operator.
// SQLite LIKE is case-insensitive for ASCII and has no ILIKE.
func (d Dialect) ContainsOperator() string {
	if d == SQLite {
		return "LIKE"
	}
	return "ILIKE"
}

// SkipLocked returns the row-locking suffix for a claim subquery.
// SQLite serializes writers, so it needs none.
func (d Dialect) SkipLocked() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE SKIP LOCKED"
}
