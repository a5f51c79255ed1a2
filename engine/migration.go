package engine

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/persistence"
	"github.com/GoCodeAlone/cecontainer/props"
)

// SchemaVersionCheck refuses to start on a database schema older than the
// minimum supported version.
type SchemaVersionCheck struct {
	dao        *persistence.SchemaDao
	minVersion int
	logger     cecontainer.Logger
}

// Start fails with ErrSchemaTooOld when the schema is older than the
// minimum version.
func (s *SchemaVersionCheck) Start(ctx context.Context) error {
	version, err := s.dao.MaxVersion(ctx)
	if err != nil {
		return err
	}
	if version < s.minVersion {
		return fmt.Errorf("%w: version %d, at least %d is required", ErrSchemaTooOld, version, s.minVersion)
	}
	s.logger.Debug("Database schema is up to date", "version", version)
	return nil
}

func migrationModule() cecontainer.Module {
	return cecontainer.NewModule("migration", cecontainer.LevelMigration,
		cecontainer.Provide(KeyDialect, func(r cecontainer.Resolver) (any, error) {
			db, err := cecontainer.Get[*persistence.Database](r, KeyDatabase)
			if err != nil {
				return nil, err
			}
			return db.Dialect(), nil
		}, KeyDatabase),
		cecontainer.Provide(KeySchemaVersionCheck, func(r cecontainer.Resolver) (any, error) {
			db, err := cecontainer.Get[*persistence.Database](r, KeyDatabase)
			if err != nil {
				return nil, err
			}
			p, err := cecontainer.Get[*props.Props](r, KeyProps)
			if err != nil {
				return nil, err
			}
			logger, err := cecontainer.Get[cecontainer.Logger](r, KeyLogger)
			if err != nil {
				return nil, err
			}
			minVersion, err := p.Int(props.CEMinSchemaVersion, 0)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
			}
			return &SchemaVersionCheck{
				dao:        persistence.NewSchemaDao(db),
				minVersion: minVersion,
				logger:     logger,
			}, nil
		}, KeyDatabase, KeyProps, KeyLogger),
	)
}
