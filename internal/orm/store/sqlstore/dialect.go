package sqlstore

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect captures the differences between the SQL engines a store can
// talk to: the registered driver name and the placeholder syntax.
type Dialect struct {
	Name   string
	Driver string

	numbered bool
}

var (
	// Postgres uses the pgx stdlib driver
	Postgres = Dialect{Name: "postgres", Driver: "pgx", numbered: true}

	// PostgresPQ uses the lib/pq driver
	PostgresPQ = Dialect{Name: "pq", Driver: "postgres", numbered: true}

	// SQLite uses mattn/go-sqlite3
	SQLite = Dialect{Name: "sqlite", Driver: "sqlite3"}
)

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "pq":
		return PostgresPQ, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unknown SQL dialect %q", name)
}

// Placeholder returns the bind parameter for the n-th argument (1-based)
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Quote quotes an identifier. Both postgres and sqlite accept double-quoted
// identifiers.
func (d Dialect) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (d Dialect) quoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, ident := range idents {
		out[i] = d.Quote(ident)
	}
	return out
}

// where renders "k1 = $1 AND k2 = $2" starting at placeholder first
func (d Dialect) where(keys []string, first int) string {
	clauses := make([]string, len(keys))
	for i, k := range keys {
		clauses[i] = fmt.Sprintf("%s = %s", d.Quote(k), d.Placeholder(first+i))
	}
	return strings.Join(clauses, " AND ")
}

// SelectByKey builds the lookup of one row by its full primary key
func (d Dialect) SelectByKey(table string, columns, keys []string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(d.quoteAll(columns), ", "),
		d.Quote(table),
		d.where(keys, 1))
}

// Upsert builds an insert that replaces the non-key columns of an existing
// row. Both dialects support ON CONFLICT.
func (d Dialect) Upsert(table string, columns, keys []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = d.Placeholder(i + 1)
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var updates []string
	for _, c := range columns {
		if !isKey[c] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", d.Quote(c), d.Quote(c)))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		d.Quote(table),
		strings.Join(d.quoteAll(columns), ", "),
		strings.Join(placeholders, ", "),
		strings.Join(d.quoteAll(keys), ", "))
	if len(updates) == 0 {
		return query + " DO NOTHING"
	}
	return query + " DO UPDATE SET " + strings.Join(updates, ", ")
}

// DeleteByKey builds the removal of one row by its full primary key
func (d Dialect) DeleteByKey(table string, keys []string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", d.Quote(table), d.where(keys, 1))
}
