package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
	SQLite     DBType = "sqlite"
)

// Logger receives the SQL statements a connection executes when verbose.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Connection represents a database connection
type Connection struct {
	db      *sql.DB
	Type    DBType
	Verbose bool
	log     Logger
}

// Connect establishes a database connection from a URL string
func Connect(dbURL string, log Logger) (*Connection, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	conn := Connection{log: log}
	var dsn string

	switch u.Scheme {
	case "mysql":
		conn.Type = MySQL
		// Convert URL format to DSN format
		database := strings.TrimPrefix(u.Path, "/")
		dsn = fmt.Sprintf("%s@tcp(%s)/%s", u.User.String(), u.Host, database)

	case "postgres", "postgresql":
		conn.Type = PostgreSQL
		// PostgreSQL can use the URL directly
		dsn = dbURL

	case "sqlite", "sqlite3":
		conn.Type = SQLite
		// sqlite::memory: parses as opaque, sqlite:///abs/path.db as host+path
		if u.Opaque != "" {
			dsn = u.Opaque
		} else {
			dsn = u.Host + u.Path
		}

	default:
		return nil, fmt.Errorf("unsupported database type: %s", u.Scheme)
	}

	db, err := sql.Open(string(conn.Type), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.db = db
	return &conn, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// GetDB returns the underlying *sql.DB instance
func (c *Connection) GetDB() *sql.DB {
	return c.db
}

// DisableForeignKeyChecks relaxes constraint checking for the transaction so
// tables can be reloaded in any order.
func (c *Connection) DisableForeignKeyChecks(tx *sql.Tx) error {
	var stmt string
	switch c.Type {
	case MySQL:
		stmt = "SET FOREIGN_KEY_CHECKS=0;"
	case PostgreSQL:
		stmt = "SET CONSTRAINTS ALL DEFERRED;"
	case SQLite:
		stmt = "PRAGMA defer_foreign_keys = ON;"
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	c.debugf("Executing SQL: %s", stmt)
	_, err := tx.Exec(stmt)
	return err
}

// EnableForeignKeyChecks restores constraint checking on the transaction
// that relaxed it, before commit. FOREIGN_KEY_CHECKS is per session in MySQL.
func (c *Connection) EnableForeignKeyChecks(tx *sql.Tx) error {
	var stmt string
	switch c.Type {
	case MySQL:
		stmt = "SET FOREIGN_KEY_CHECKS=1;"
	case PostgreSQL:
		stmt = "SET CONSTRAINTS ALL IMMEDIATE;"
	case SQLite:
		// defer_foreign_keys resets itself at commit
		return nil
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	c.debugf("Executing SQL: %s", stmt)
	_, err := tx.Exec(stmt)
	return err
}

func (c *Connection) debugf(format string, args ...interface{}) {
	if c.Verbose && c.log != nil {
		c.log.Debugf(format, args...)
	}
}
