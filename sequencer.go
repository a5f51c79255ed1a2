package cecontainer

import (
	"context"
	"fmt"
	"sync"
)

// BuildState tracks the progress of a Sequencer.
type BuildState int

const (
	BuildEmpty BuildState = iota
	BuildLevel1
	BuildLevel2
	BuildLevel3
	BuildLevel4
	BuildReady
	// BuildFailed is reached after a failed build was rolled back.
	BuildFailed
)

// String returns the state name.
func (s BuildState) String() string {
	switch s {
	case BuildEmpty:
		return "EMPTY"
	case BuildLevel1, BuildLevel2, BuildLevel3, BuildLevel4:
		return fmt.Sprintf("LEVEL_%d_BUILT", int(s))
	case BuildReady:
		return "READY"
	case BuildFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("BuildState(%d)", int(s))
	}
}

// ModuleSource returns the modules of a level. It runs only once every
// ancestor level is fully instantiated, and receives the empty level so it can
// resolve components from ancestors.
type ModuleSource func(level *Level) ([]Module, error)

// LevelPlan describes how to populate one level.
type LevelPlan struct {
	ID      LevelID
	Modules ModuleSource
}

// Modules returns a ModuleSource yielding fixed modules.
func Modules(modules ...Module) ModuleSource {
	return func(*Level) ([]Module, error) { return modules, nil }
}

// Sequencer builds a container tree level by level.
type Sequencer struct {
	mu       sync.Mutex
	plans    []LevelPlan
	opts     []Option
	settings *settings
	state    BuildState
}

// NewSequencer creates a sequencer for plans, which must follow Levels.
func NewSequencer(plans []LevelPlan, opts ...Option) *Sequencer {
	return &Sequencer{
		plans:    append([]LevelPlan(nil), plans...),
		opts:     opts,
		settings: newSettings(opts),
		state:    BuildEmpty,
	}
}

// State returns the build progress.
func (s *Sequencer) State() BuildState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) validatePlans() error {
	if len(s.plans) != len(Levels) {
		return fmt.Errorf("%w: %d plans for %d levels", ErrInvalidPlan, len(s.plans), len(Levels))
	}
	for i, p := range s.plans {
		if p.ID != Levels[i] {
			return fmt.Errorf("%w: plan %d is %s, want %s", ErrInvalidPlan, i, p.ID, Levels[i])
		}
		if p.Modules == nil {
			return fmt.Errorf("%w: level %s has no module source", ErrInvalidPlan, p.ID)
		}
	}
	return nil
}

// Build creates, populates and instantiates every level in order. A level's
// modules are not evaluated before its parent is fully instantiated. On any
// failure every level built so far is torn down and released, and the
// original error is returned; no partially built tree ever escapes.
func (s *Sequencer) Build(ctx context.Context) (*Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != BuildEmpty {
		return nil, fmt.Errorf("%w: state %s", ErrAlreadyBuilt, s.state)
	}
	if err := s.validatePlans(); err != nil {
		s.state = BuildFailed
		return nil, err
	}

	tree := NewTree(s.opts...)
	var parent *Level
	for i, plan := range s.plans {
		level, err := s.buildLevel(ctx, tree, parent, plan)
		if err != nil {
			s.rollback(ctx, tree, plan.ID, err)
			return nil, err
		}
		s.state = BuildState(i + 1)
		s.settings.logger.Info("Level built", "level", plan.ID, "components", level.Len())
		s.settings.emit(ctx, EventTypeLevelBuilt, map[string]any{
			"level":      plan.ID.String(),
			"components": level.Len(),
		})
		parent = level
	}
	s.state = BuildReady
	return tree, nil
}

func (s *Sequencer) buildLevel(ctx context.Context, tree *Tree, parent *Level, plan LevelPlan) (*Level, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var level *Level
	if parent == nil {
		root, err := tree.CreateRoot(plan.ID)
		if err != nil {
			return nil, err
		}
		level = root
	} else {
		level = parent.CreateChild(plan.ID)
	}

	modules, err := plan.Modules(level)
	if err != nil {
		return nil, fmt.Errorf("level %s: %w", plan.ID, err)
	}
	for _, m := range modules {
		if err := level.RegisterModule(m); err != nil {
			return nil, fmt.Errorf("level %s: %w", plan.ID, err)
		}
		s.settings.logger.Debug("Registered module", "level", plan.ID, "module", m.Name, "components", m.Len())
	}
	if err := level.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("level %s: %w", plan.ID, err)
	}
	return level, nil
}

func (s *Sequencer) rollback(ctx context.Context, tree *Tree, failed LevelID, cause error) {
	s.settings.logger.Error("Startup failed, rolling back", "level", failed, "error", cause)
	if err := tree.teardown(context.WithoutCancel(ctx), s.settings); err != nil {
		s.settings.logger.Error("Errors during rollback", "error", err)
	}
	tree.release()
	s.state = BuildFailed
	s.settings.emit(ctx, EventTypeContainerRolledBack, map[string]any{
		"level": failed.String(),
		"error": cause.Error(),
	})
}
