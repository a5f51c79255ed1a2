// Package persistence gives the compute engine access to the SonarQube
// database: connection lifecycle, dialect detection and the few DAOs read at
// startup.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	ErrInvalidURL         = errors.New("invalid database url")
)

// Dialect identifies the database vendor.
type Dialect string

const DialectPostgres Dialect = "postgresql"

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	return "postgres"
}

// DialectFromURL detects the dialect from the url scheme. A "jdbc:" prefix is
// accepted.
func DialectFromURL(raw string) (Dialect, error) {
	u, err := parseURL(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, u.Scheme)
	}
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimPrefix(strings.TrimSpace(raw), "jdbc:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no scheme or host", ErrInvalidURL, raw)
	}
	return u, nil
}

// Database owns the connection pool. It is started with the platform level
// and closed when the container is disposed.
type Database struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open prepares a pool for rawURL. Credentials given separately replace
// those of the url. No connection is made before Start.
func Open(rawURL, user, password string) (*Database, error) {
	dialect, err := DialectFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "postgresql" {
		u.Scheme = "postgres"
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	db, err := sqlx.Open(dialect.driverName(), u.String())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Database{db: db, dialect: dialect}, nil
}

// NewDatabase wraps an existing pool.
func NewDatabase(db *sqlx.DB, dialect Dialect) *Database {
	return &Database{db: db, dialect: dialect}
}

// DB returns the underlying pool.
func (d *Database) DB() *sqlx.DB {
	return d.db
}

// Dialect returns the vendor of the database.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// Start checks that the database answers.
func (d *Database) Start(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}
	return nil
}

// Ping is used by the health check.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases the pool.
func (d *Database) Close() error {
	return d.db.Close()
}
