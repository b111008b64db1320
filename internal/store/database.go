package store

import (
	"context"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // SQLite driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Supported database drivers for the SQL dataset source.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Database is a read-only connection to the database holding the delivery table
type Database struct {
	conn   *sqlx.DB
	driver string
}

// NewDatabase opens and pings a connection for driver ("postgres" or "sqlite").
func NewDatabase(driver, dsn string) (*Database, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if driver == DriverSQLite {
		// A single connection keeps in-memory databases visible to every query.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		conn:   db,
		driver: driver,
	}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sqlx.DB for queries
func (db *Database) DB() *sqlx.DB {
	return db.conn
}

// Driver returns the driver name the connection was opened with
func (db *Database) Driver() string {
	return db.driver
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}
