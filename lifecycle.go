package cecontainer

import (
	"context"
	"fmt"
	"sync"
)

// LifecycleState is the state of a container tree. Transitions are linear:
// CREATED, STARTED, STOPPED, DISPOSED. STOPPED only exists while a stop walk
// is running; a stopped tree is always disposed.
type LifecycleState int

const (
	StateCreated LifecycleState = iota
	StateStarted
	StateStopped
	StateDisposed
)

// String returns the state name.
func (s LifecycleState) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	case StateDisposed:
		return "DISPOSED"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
}

// Controller drives the lifecycle of a built tree.
type Controller struct {
	mu       sync.Mutex
	tree     *Tree
	state    LifecycleState
	settings *settings
}

// NewController returns a controller in state CREATED for tree.
func NewController(tree *Tree, opts ...Option) *Controller {
	return &Controller{
		tree:     tree,
		state:    StateCreated,
		settings: newSettings(opts),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tree returns the controlled tree, or nil once disposed.
func (c *Controller) Tree() *Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return nil
	}
	return c.tree
}

// Start starts every Startable component, outer level first and in
// dependency order within a level. It is only valid from CREATED. When a
// component fails to start, the components already started are stopped,
// everything is disposed and the controller ends DISPOSED.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCreated {
		return fmt.Errorf("%w: cannot start from %s", ErrIllegalStateTransition, c.state)
	}
	if c.tree == nil || c.tree.released {
		return ErrTreeReleased
	}

	s := c.settings
	s.logger.Info("Starting container tree", "levels", len(c.tree.levels), "components", c.tree.Len())
	if err := c.tree.start(ctx, s); err != nil {
		s.logger.Error("Container start failed, rolling back", "error", err)
		c.state = StateStopped
		if terr := c.tree.teardown(context.WithoutCancel(ctx), s); terr != nil {
			s.logger.Error("Errors during rollback", "error", terr)
		}
		c.dispose(ctx)
		s.emit(ctx, EventTypeContainerRolledBack, map[string]any{"error": err.Error()})
		return err
	}

	c.state = StateStarted
	s.logger.Info("Container tree started")
	s.emit(ctx, EventTypeContainerStarted, nil)
	return nil
}

// Stop stops every started component then disposes of every component, in
// the reverse order of Start. Failures are logged, returned joined, and never
// prevent the remaining components from being stopped. Stop is valid from
// STARTED and from CREATED, and always ends DISPOSED. Stopping a disposed
// controller does nothing.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDisposed:
		return nil
	case StateCreated, StateStarted:
	default:
		return fmt.Errorf("%w: cannot stop from %s", ErrIllegalStateTransition, c.state)
	}

	s := c.settings
	s.logger.Info("Stopping container tree", "from", c.state)
	c.state = StateStopped
	var err error
	if c.tree != nil && !c.tree.released {
		err = c.tree.teardown(context.WithoutCancel(ctx), s)
	}
	c.dispose(ctx)
	if err != nil {
		s.logger.Error("Container tree stopped with errors", "error", err)
	}
	return err
}

func (c *Controller) dispose(ctx context.Context) {
	if c.tree != nil {
		c.tree.release()
	}
	c.state = StateDisposed
	c.settings.logger.Info("Container tree disposed")
	c.settings.emit(ctx, EventTypeContainerDisposed, nil)
}
