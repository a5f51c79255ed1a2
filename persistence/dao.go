package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Global properties written by the web server and read by the compute engine.
const (
	ServerIDKey        = "server.id"
	ServerStartTimeKey = "server.startTime"

	// DateTimeLayout is the format of persisted dates.
	DateTimeLayout = "2006-01-02T15:04:05-0700"
)

const (
	selectGlobalProperty = `SELECT prop_value FROM properties WHERE prop_key = $1`
	selectSchemaVersion  = `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`
)

// PropertiesDao reads global properties.
type PropertiesDao struct {
	db *Database
}

// NewPropertiesDao returns the DAO of the global properties table.
func NewPropertiesDao(db *Database) *PropertiesDao {
	return &PropertiesDao{db: db}
}

// SelectGlobalProperty returns the value of key. A missing row is reported
// with ok false and no error.
func (p *PropertiesDao) SelectGlobalProperty(ctx context.Context, key string) (value string, ok bool, err error) {
	var v sql.NullString
	if err := p.db.DB().GetContext(ctx, &v, selectGlobalProperty, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select property %s: %w", key, err)
	}
	if !v.Valid || v.String == "" {
		return "", false, nil
	}
	return v.String, true, nil
}

// SchemaDao reads the schema migration history.
type SchemaDao struct {
	db *Database
}

// NewSchemaDao returns the DAO of the schema migrations table.
func NewSchemaDao(db *Database) *SchemaDao {
	return &SchemaDao{db: db}
}

// MaxVersion returns the latest applied migration, 0 for an empty history.
func (s *SchemaDao) MaxVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.DB().GetContext(ctx, &version, selectSchemaVersion); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
