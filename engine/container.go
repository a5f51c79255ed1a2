// Package engine assembles the compute engine process: four nested container
// levels (platform, migration support, mid-tier services, task processing)
// built by the cecontainer sequencer and driven by its lifecycle controller.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
	"github.com/GoCodeAlone/cecontainer/props"
)

// Version is reported by the system info endpoint and the CLI.
var Version = "dev"

// Container is the compute engine container. It is created empty: no level
// exists until Start.
type Container struct {
	mu        sync.Mutex
	logger    cecontainer.Logger
	observers []cecontainer.Observer
	db        *sqlx.DB
	clock     Clock

	ctrl     *cecontainer.Controller
	mode     cluster.Mode
	disposed bool

	stopRequested chan struct{}
	stopOnce      sync.Once
}

// New creates a container. Nothing is built until Start.
func New(opts ...Option) *Container {
	c := &Container{
		logger:        cecontainer.NopLogger{},
		clock:         systemClock{},
		stopRequested: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start parses the cluster settings, builds the four levels and starts every
// component. Start may only be called once. On failure everything already
// built is torn down and the container ends DISPOSED.
func (c *Container) Start(ctx context.Context, p *props.Props) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctrl != nil || c.disposed {
		return fmt.Errorf("%w: container already started", cecontainer.ErrIllegalStateTransition)
	}
	if p == nil {
		p = props.New(nil)
	}

	cfg, err := cluster.ConfigFromProps(p)
	if err != nil {
		c.disposed = true
		c.logger.Error("Invalid cluster configuration", "error", err)
		return err
	}
	selector := cluster.NewSelector(cfg, KeyWorkers,
		cluster.WithMemberLogger(cecontainer.WithFields(c.logger, "component", KeyClusterMember.String())))
	binding := selector.Select()
	c.mode = binding.Mode
	c.logger.Info("Starting compute engine", "version", Version, "clusterMode", binding.Mode.String())

	opts := []cecontainer.Option{cecontainer.WithLogger(c.logger), cecontainer.WithObservers(c.observers...)}
	tree, err := cecontainer.NewSequencer(c.plans(p, binding), opts...).Build(ctx)
	if err != nil {
		c.disposed = true
		return err
	}

	c.ctrl = cecontainer.NewController(tree, opts...)
	if err := c.ctrl.Start(ctx); err != nil {
		return err
	}
	c.logger.Info("Compute engine started", "components", tree.Len())
	return nil
}

// Stop stops and disposes of every component. Stopping a container that was
// never started only marks it DISPOSED.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctrl == nil {
		c.disposed = true
		return nil
	}
	err := c.ctrl.Stop(ctx)
	c.logger.Info("Compute engine stopped")
	return err
}

// State returns the lifecycle state of the container.
func (c *Container) State() cecontainer.LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.ctrl != nil:
		return c.ctrl.State()
	case c.disposed:
		return cecontainer.StateDisposed
	default:
		return cecontainer.StateCreated
	}
}

// Tree returns the container tree, or nil before Start and after teardown.
func (c *Container) Tree() *cecontainer.Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctrl == nil {
		return nil
	}
	return c.ctrl.Tree()
}

// ClusterMode returns the selected distributed information mode.
func (c *Container) ClusterMode() cluster.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// StopRequested is closed once the stop flag is dropped in the shared
// directory.
func (c *Container) StopRequested() <-chan struct{} {
	return c.stopRequested
}
