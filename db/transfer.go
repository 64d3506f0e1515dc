package db

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andys/unlscrub/unl"
)

// LoadTable replaces the contents of the target table with the records read
// from r: DELETE FROM t followed by one INSERT per record, in one transaction.
// Foreign key checks are relaxed for the load and restored before commit.
// Empty fields load as NULL and fields past the schema's columns are ignored.
func (c *Connection) LoadTable(schema *TableSchema, r io.Reader) (int64, error) {
	if c.db == nil {
		return 0, fmt.Errorf("sql: database is closed")
	}

	columns := schema.FieldNames()
	query := c.insertQuery(schema.Name, columns)
	deleteQuery := fmt.Sprintf("DELETE FROM %s", escapeIdentifier(schema.Name, c.Type))

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if disableErr := c.DisableForeignKeyChecks(tx); disableErr != nil {
		return 0, fmt.Errorf("failed to disable foreign key checks: %w", disableErr)
	}

	c.debugf("Executing SQL: %s", deleteQuery)
	if _, err := tx.Exec(deleteQuery); err != nil {
		return 0, fmt.Errorf("failed to execute query: %s, error: %w", deleteQuery, err)
	}

	c.debugf("Executing SQL: %s", query)
	reader := unl.NewReader(r)
	var loaded int64
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to read row %d of table %s: %w", reader.Lines()+1, schema.Name, err)
		}
		if _, err := tx.Exec(query, rowValues(rec, len(columns))...); err != nil {
			return loaded, fmt.Errorf("failed to execute query: %s, error: %w", query, err)
		}
		loaded++
	}

	if enableErr := c.EnableForeignKeyChecks(tx); enableErr != nil {
		return loaded, fmt.Errorf("failed to enable foreign key checks: %w", enableErr)
	}
	if err := tx.Commit(); err != nil {
		return loaded, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return loaded, nil
}

// CountRows returns the number of rows in table
func (c *Connection) CountRows(table string) (int64, error) {
	if c.db == nil {
		return 0, fmt.Errorf("sql: database is closed")
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", escapeIdentifier(table, c.Type))
	c.debugf("Executing SQL: %s", query)

	var n int64
	if err := c.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

func (c *Connection) insertQuery(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		if c.Type == PostgreSQL {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		escapeIdentifier(table, c.Type),
		strings.Join(escapeIdentifiers(columns, c.Type), ", "),
		strings.Join(placeholders, ", "),
	)
}

// rowValues lines a record up against n columns
func rowValues(rec *unl.Record, n int) []interface{} {
	values := make([]interface{}, n)
	for i := 0; i < n && i < rec.Len(); i++ {
		if rec.Values[i] != "" {
			values[i] = rec.Values[i]
		}
	}
	return values
}

func escapeIdentifier(identifier string, dbType DBType) string {
	switch dbType {
	case MySQL:
		return fmt.Sprintf("`%s`", identifier)
	case PostgreSQL, SQLite:
		return fmt.Sprintf(`"%s"`, identifier)
	default:
		return identifier
	}
}

func escapeIdentifiers(identifiers []string, dbType DBType) []string {
	escaped := make([]string, len(identifiers))
	for i, id := range identifiers {
		escaped[i] = escapeIdentifier(id, dbType)
	}
	return escaped
}
