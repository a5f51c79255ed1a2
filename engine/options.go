package engine

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GoCodeAlone/cecontainer"
)

// Clock tells the time. It is a platform component so tests can freeze it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used by the container and every component.
func WithLogger(logger cecontainer.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObservers adds lifecycle observers.
func WithObservers(observers ...cecontainer.Observer) Option {
	return func(c *Container) {
		c.observers = append(c.observers, observers...)
	}
}

// WithDB makes the platform use db instead of opening db.url. The container
// closes it on dispose.
func WithDB(db *sqlx.DB) Option {
	return func(c *Container) {
		c.db = db
	}
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(c *Container) {
		if clock != nil {
			c.clock = clock
		}
	}
}
