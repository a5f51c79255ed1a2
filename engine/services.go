package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/health"
	"github.com/GoCodeAlone/cecontainer/persistence"
)

const (
	identityTimeout = 10 * time.Second
	healthTimeout   = 5 * time.Second
)

// ServerIdentity is the identity of the server, persisted by the web server
// before the compute engine is allowed to start.
type ServerIdentity struct {
	ID        string
	StartedAt time.Time
}

func loadServerIdentity(dao *persistence.PropertiesDao) (*ServerIdentity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), identityTimeout)
	defer cancel()

	id, ok, err := dao.SelectGlobalProperty(ctx, persistence.ServerIDKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingServerIdentity, persistence.ServerIDKey)
	}
	raw, ok, err := dao.SelectGlobalProperty(ctx, persistence.ServerStartTimeKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingServerIdentity, persistence.ServerStartTimeKey)
	}
	startedAt, err := time.Parse(persistence.DateTimeLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q: %w", ErrMissingServerIdentity, persistence.ServerStartTimeKey, raw, err)
	}
	return &ServerIdentity{ID: id, StartedAt: startedAt}, nil
}

// ProcessingState is the state reported by the compute engine status.
type ProcessingState string

const (
	ProcessingInit     ProcessingState = "INIT"
	ProcessingStarted  ProcessingState = "STARTED"
	ProcessingStopping ProcessingState = "STOPPING"
	ProcessingStopped  ProcessingState = "STOPPED"
)

// Status tracks the compute engine lifecycle as seen by the outside world.
type Status struct {
	clock Clock

	mu        sync.RWMutex
	state     ProcessingState
	startedAt time.Time
}

func newStatus(clock Clock) *Status {
	return &Status{clock: clock, state: ProcessingInit}
}

// State returns the current state.
func (s *Status) State() ProcessingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// StartedAt returns when the services level started, zero before.
func (s *Status) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

func (s *Status) set(state ProcessingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state == ProcessingStarted {
		s.startedAt = s.clock.Now()
	}
}

// Start marks processing as started.
func (s *Status) Start(context.Context) error {
	s.set(ProcessingStarted)
	return nil
}

// Stop marks processing as stopping.
func (s *Status) Stop(context.Context) error {
	s.set(ProcessingStopping)
	return nil
}

// Close marks processing as stopped.
func (s *Status) Close() error {
	s.set(ProcessingStopped)
	return nil
}

func newHealthAggregator(db *persistence.Database, status *Status) (*health.Aggregator, error) {
	agg := health.NewAggregator(healthTimeout)
	err := agg.Register(health.CheckFunc{
		CheckName: "database",
		Fn: func(ctx context.Context) health.CheckResult {
			if err := db.Ping(ctx); err != nil {
				return health.Red("database is not reachable: " + err.Error())
			}
			return health.Green()
		},
	})
	if err != nil {
		return nil, err
	}
	err = agg.Register(health.CheckFunc{
		CheckName: "ceStatus",
		Fn: func(context.Context) health.CheckResult {
			switch state := status.State(); state {
			case ProcessingStarted:
				return health.Green()
			case ProcessingInit:
				return health.CheckResult{Status: health.StatusYellow, Causes: []string{"compute engine is starting"}}
			default:
				return health.Red("compute engine is " + string(state))
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func servicesModule() cecontainer.Module {
	return cecontainer.NewModule("services", cecontainer.LevelServices,
		cecontainer.Provide(KeyServerIdentity, func(r cecontainer.Resolver) (any, error) {
			dao, err := cecontainer.Get[*persistence.PropertiesDao](r, KeyPropertiesDao)
			if err != nil {
				return nil, err
			}
			return loadServerIdentity(dao)
		}, KeyPropertiesDao),
		cecontainer.Provide(KeyStatus, func(r cecontainer.Resolver) (any, error) {
			clock, err := cecontainer.Get[Clock](r, KeyClock)
			if err != nil {
				return nil, err
			}
			return newStatus(clock), nil
		}, KeyClock),
		cecontainer.Provide(KeyHealthAggregator, func(r cecontainer.Resolver) (any, error) {
			db, err := cecontainer.Get[*persistence.Database](r, KeyDatabase)
			if err != nil {
				return nil, err
			}
			status, err := cecontainer.Get[*Status](r, KeyStatus)
			if err != nil {
				return nil, err
			}
			return newHealthAggregator(db, status)
		}, KeyDatabase, KeyStatus),
	)
}
