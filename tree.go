package cecontainer

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Tree is the arena owning every Level of a container tree. Levels reference
// their parent by index, and a child is always allocated after its parent, so
// walking the arena backwards visits children before parents.
//
// A Tree is owned by the goroutine that builds it and is not safe for
// concurrent use.
type Tree struct {
	levels   []*Level
	settings *settings
	released bool
}

// NewTree creates an empty tree.
func NewTree(opts ...Option) *Tree {
	return &Tree{settings: newSettings(opts)}
}

// CreateRoot allocates the root level.
func (t *Tree) CreateRoot(id LevelID) (*Level, error) {
	if t.released {
		return nil, ErrTreeReleased
	}
	if len(t.levels) > 0 {
		return nil, ErrRootExists
	}
	return t.allocate(id, -1), nil
}

func (t *Tree) allocate(id LevelID, parent int) *Level {
	l := &Level{
		id:     id,
		index:  len(t.levels),
		parent: parent,
		tree:   t,
		keys:   make(map[Key]int),
		byKey:  make(map[Key]*instance),
	}
	t.levels = append(t.levels, l)
	return l
}

// Root returns the root level, or nil for an empty or released tree.
func (t *Tree) Root() *Level {
	if len(t.levels) == 0 {
		return nil
	}
	return t.levels[0]
}

// Top returns the most recently allocated level.
func (t *Tree) Top() *Level {
	if len(t.levels) == 0 {
		return nil
	}
	return t.levels[len(t.levels)-1]
}

// Levels returns the levels in allocation order.
func (t *Tree) Levels() []*Level {
	return append([]*Level(nil), t.levels...)
}

// Level returns the first level with the given id, or nil.
func (t *Tree) Level(id LevelID) *Level {
	for _, l := range t.levels {
		if l.id == id {
			return l
		}
	}
	return nil
}

// Len returns the number of components registered across all levels.
func (t *Tree) Len() int {
	n := 0
	for _, l := range t.levels {
		n += l.Len()
	}
	return n
}

// Released reports whether the tree was torn down and emptied.
func (t *Tree) Released() bool {
	return t.released
}

// start starts every Startable instance, outer level first. On failure the
// instances started so far keep their started flag for the teardown.
func (t *Tree) start(ctx context.Context, s *settings) error {
	for _, l := range t.levels {
		for _, inst := range l.instances {
			startable, ok := inst.value.(Startable)
			if !ok {
				inst.started = true
				continue
			}
			s.logger.Debug("Starting component", "level", l.id, "key", inst.key)
			if err := startable.Start(ctx); err != nil {
				s.logger.Error("Component failed to start", "level", l.id, "key", inst.key, "error", err)
				s.emit(ctx, EventTypeComponentFailed, componentEventData(l, inst, err))
				return fmt.Errorf("%w: %s in level %s: %w", ErrComponentStart, inst.key, l.id, err)
			}
			inst.started = true
			s.emit(ctx, EventTypeComponentStarted, componentEventData(l, inst, nil))
		}
	}
	return nil
}

// teardown stops every started instance, then disposes of every instance,
// in reverse start order. Failures are logged and do not interrupt the walk.
func (t *Tree) teardown(ctx context.Context, s *settings) error {
	var errs []error

	for li := len(t.levels) - 1; li >= 0; li-- {
		l := t.levels[li]
		for i := len(l.instances) - 1; i >= 0; i-- {
			inst := l.instances[i]
			if !inst.started {
				continue
			}
			inst.started = false
			stoppable, ok := inst.value.(Stoppable)
			if !ok {
				continue
			}
			if err := stoppable.Stop(ctx); err != nil {
				s.logger.Error("Error stopping component", "level", l.id, "key", inst.key, "error", err)
				s.emit(ctx, EventTypeComponentFailed, componentEventData(l, inst, err))
				errs = append(errs, fmt.Errorf("stop %s: %w", inst.key, err))
				continue
			}
			s.logger.Debug("Stopped component", "level", l.id, "key", inst.key)
			s.emit(ctx, EventTypeComponentStopped, componentEventData(l, inst, nil))
		}
	}

	for li := len(t.levels) - 1; li >= 0; li-- {
		l := t.levels[li]
		for i := len(l.instances) - 1; i >= 0; i-- {
			inst := l.instances[i]
			closer, ok := inst.value.(io.Closer)
			if !ok {
				continue
			}
			if err := closer.Close(); err != nil {
				s.logger.Error("Error disposing component", "level", l.id, "key", inst.key, "error", err)
				errs = append(errs, fmt.Errorf("dispose %s: %w", inst.key, err))
			}
		}
	}

	return errors.Join(errs...)
}

// release drops every level and instance. The tree cannot be used afterwards.
func (t *Tree) release() {
	for _, l := range t.levels {
		l.instances = nil
		l.byKey = nil
		l.descriptors = nil
		l.keys = nil
	}
	t.levels = nil
	t.released = true
}
