package cecontainer

import (
	"errors"
)

// Container errors
var (
	// Registration errors
	ErrDuplicateComponent  = errors.New("component already registered in level")
	ErrLevelSealed         = errors.New("level already instantiated")
	ErrModuleLevelMismatch = errors.New("module targets another level")
	ErrDescriptorInvalid   = errors.New("invalid component descriptor")

	// Resolution errors
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrUndeclaredDependency = errors.New("dependency not declared by component")
	ErrCyclicDependency     = errors.New("cyclic dependency detected")
	ErrComponentType        = errors.New("component has unexpected type")
	ErrComponentConstructor = errors.New("component constructor failed")

	// Build and lifecycle errors
	ErrInvalidPlan            = errors.New("invalid level plan")
	ErrAlreadyBuilt           = errors.New("sequencer already ran")
	ErrIllegalStateTransition = errors.New("illegal lifecycle state transition")
	ErrTreeReleased           = errors.New("container tree released")
	ErrRootExists             = errors.New("container tree already has a root level")
	ErrComponentStart         = errors.New("component failed to start")
)
