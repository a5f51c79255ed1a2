// Package cecontainer provides the component container runtime used to boot the
// compute engine process.
//
// Components are described by Descriptors grouped into Modules. Each Module
// targets one Level of a bounded, four-level container tree. A Level only sees
// its own components and those of its ancestors, never the components of a
// child or a sibling. The Sequencer builds the Levels in order and the
// Controller drives the lifecycle of the assembled tree:
//
//	seq := cecontainer.NewSequencer(plans, cecontainer.WithLogger(logger))
//	tree, err := seq.Build(ctx)
//	if err != nil {
//		return err // everything built so far was already torn down
//	}
//	ctrl := cecontainer.NewController(tree, cecontainer.WithLogger(logger))
//	if err := ctrl.Start(ctx); err != nil {
//		return err
//	}
//	defer ctrl.Stop(context.Background())
package cecontainer

import (
	"context"
	"fmt"
)

// Key identifies a component inside a container tree.
type Key string

// String returns the key as a string.
func (k Key) String() string {
	return string(k)
}

// Constructor builds a component instance. The resolver only exposes the
// dependencies declared by the component's descriptor.
type Constructor func(r Resolver) (any, error)

// Descriptor is the construction recipe of one component.
type Descriptor struct {
	// Key is the unique identifier of the component within its Level.
	Key Key

	// Requires lists the keys the constructor needs. Each one must be
	// registered in the same Level or be resolvable from an ancestor Level.
	Requires []Key

	// New builds the component.
	New Constructor
}

// Instance returns a descriptor for an already built value.
func Instance(key Key, value any) Descriptor {
	return Descriptor{
		Key: key,
		New: func(Resolver) (any, error) { return value, nil },
	}
}

// Provide returns a descriptor for a component built by fn from its dependencies.
func Provide(key Key, fn Constructor, requires ...Key) Descriptor {
	return Descriptor{Key: key, Requires: requires, New: fn}
}

func (d Descriptor) validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: empty key", ErrDescriptorInvalid)
	}
	if d.New == nil {
		return fmt.Errorf("%w: %s has no constructor", ErrDescriptorInvalid, d.Key)
	}
	for _, dep := range d.Requires {
		if dep == d.Key {
			return fmt.Errorf("%w: %s", ErrCyclicDependency, d.Key)
		}
	}
	return nil
}

// Resolver looks up component instances by key.
type Resolver interface {
	Resolve(key Key) (any, error)
}

// Get resolves key and asserts the instance to T.
func Get[T any](r Resolver, key Key) (T, error) {
	var zero T
	v, err := r.Resolve(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %T", ErrComponentType, key, v, zero)
	}
	return t, nil
}

// Startable is implemented by components that run something once the whole
// tree is built. Start is called outer Level first, in dependency order.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is implemented by components that need to stop what Start began.
// Stop is only called on components whose Start succeeded, in the reverse
// order of Start.
//
// Components releasing resources at the end of their life implement io.Closer.
// Close is called on every instantiated component, started or not, after the
// stop pass.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// Module is a named, ordered set of descriptors targeting one Level.
// Modules are pure data: nothing runs until the Sequencer instantiates them.
type Module struct {
	Name        string
	Level       LevelID
	Descriptors []Descriptor
}

// NewModule creates a module for level. The descriptor slice is copied.
func NewModule(name string, level LevelID, descriptors ...Descriptor) Module {
	return Module{
		Name:        name,
		Level:       level,
		Descriptors: append([]Descriptor(nil), descriptors...),
	}
}

// Len returns the number of descriptors in the module.
func (m Module) Len() int {
	return len(m.Descriptors)
}

// declaredResolver restricts a constructor to the dependencies it declared.
type declaredResolver struct {
	owner    Key
	declared []Key
	level    *Level
}

func (r declaredResolver) Resolve(key Key) (any, error) {
	for _, k := range r.declared {
		if k == key {
			return r.level.Resolve(key)
		}
	}
	return nil, fmt.Errorf("%w: %s requested %s", ErrUndeclaredDependency, r.owner, key)
}
