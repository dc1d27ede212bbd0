package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver, registered as "sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// Store is an open database handle plus the dialect its queries are bound for.
type Store struct {
	DB     *sql.DB
	Driver string
}

// Open creates a connection pool for driver and pings the database to ensure
// connectivity. SQLite gets a single connection so that :memory: databases
// are shared by every repository and writes are serialized.
func Open(driver, dataSourceName string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{DB: db, Driver: driver}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Ping is used by the health check.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind converts $n placeholders to ? for SQLite. Queries in this package
// use each placeholder once and in order, so positional ? is equivalent.
func (s *Store) rebind(query string) string {
	if s.Driver != DriverSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}
