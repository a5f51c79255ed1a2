package cecontainer

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// LevelID names one of the fixed container levels.
type LevelID int

const (
	// LevelPlatform holds the base platform: configuration, file system, database.
	LevelPlatform LevelID = iota + 1
	// LevelMigration holds database migration support.
	LevelMigration
	// LevelServices holds the mid-tier services relying on persisted state.
	LevelServices
	// LevelTasks holds the task-processing tier.
	LevelTasks
)

// Levels lists the container levels in build order. Each level is the parent
// of the next one.
var Levels = []LevelID{LevelPlatform, LevelMigration, LevelServices, LevelTasks}

// String returns the level's name.
func (id LevelID) String() string {
	switch id {
	case LevelPlatform:
		return "platform"
	case LevelMigration:
		return "migration"
	case LevelServices:
		return "services"
	case LevelTasks:
		return "tasks"
	default:
		return fmt.Sprintf("level(%d)", int(id))
	}
}

type instance struct {
	key     Key
	value   any
	started bool
}

// Level is an ordered container of components with at most one parent.
// Levels live in a Tree arena and reference their parent by index.
type Level struct {
	id          LevelID
	index       int
	parent      int
	tree        *Tree
	descriptors []Descriptor
	keys        map[Key]int
	instances   []*instance
	byKey       map[Key]*instance
	sealed      bool
}

// ID returns the level identifier.
func (l *Level) ID() LevelID {
	return l.id
}

// Parent returns the parent level, or nil for the root.
func (l *Level) Parent() *Level {
	if l.parent < 0 || l.tree.released {
		return nil
	}
	return l.tree.levels[l.parent]
}

// Depth returns 0 for the root, 1 for its children and so on.
func (l *Level) Depth() int {
	depth := 0
	for p := l.Parent(); p != nil; p = p.Parent() {
		depth++
	}
	return depth
}

// CreateChild allocates a new level whose parent is l.
func (l *Level) CreateChild(id LevelID) *Level {
	return l.tree.allocate(id, l.index)
}

// Register adds a descriptor to the level.
func (l *Level) Register(d Descriptor) error {
	if l.tree.released {
		return ErrTreeReleased
	}
	if l.sealed {
		return fmt.Errorf("%w: %s cannot accept %s", ErrLevelSealed, l.id, d.Key)
	}
	if err := d.validate(); err != nil {
		return err
	}
	if _, exists := l.keys[d.Key]; exists {
		return fmt.Errorf("%w: %s in level %s", ErrDuplicateComponent, d.Key, l.id)
	}
	l.keys[d.Key] = len(l.descriptors)
	l.descriptors = append(l.descriptors, d)
	return nil
}

// RegisterModule registers every descriptor of m. The module must target l.
func (l *Level) RegisterModule(m Module) error {
	if m.Level != l.id {
		return fmt.Errorf("%w: module %s targets %s, not %s", ErrModuleLevelMismatch, m.Name, m.Level, l.id)
	}
	for _, d := range m.Descriptors {
		if err := l.Register(d); err != nil {
			return fmt.Errorf("module %s: %w", m.Name, err)
		}
	}
	return nil
}

// Contains reports whether key is registered in this level, ignoring ancestors.
func (l *Level) Contains(key Key) bool {
	_, ok := l.keys[key]
	return ok
}

// Len returns the number of components registered in this level.
func (l *Level) Len() int {
	return len(l.descriptors)
}

// Keys returns the registered keys in registration order.
func (l *Level) Keys() []Key {
	keys := make([]Key, len(l.descriptors))
	for i, d := range l.descriptors {
		keys[i] = d.Key
	}
	return keys
}

// Instantiated reports whether Instantiate already ran.
func (l *Level) Instantiated() bool {
	return l.sealed
}

// Resolve looks key up in the level, then in each ancestor. Descendant and
// sibling levels are never searched.
func (l *Level) Resolve(key Key) (any, error) {
	if l.tree.released {
		return nil, ErrTreeReleased
	}
	for cur := l; cur != nil; cur = cur.Parent() {
		if inst, ok := cur.byKey[key]; ok {
			return inst.value, nil
		}
	}
	return nil, fmt.Errorf("%w: %s from level %s", ErrUnresolvedDependency, key, l.id)
}

func (l *Level) resolvableFromAncestors(key Key) bool {
	for cur := l.Parent(); cur != nil; cur = cur.Parent() {
		if _, ok := cur.byKey[key]; ok {
			return true
		}
	}
	return false
}

// Instantiate builds every registered component in dependency order. Nothing
// is built when a dependency is missing or the level contains a cycle.
// Components built before a constructor failure stay recorded so that a
// teardown can dispose of them.
func (l *Level) Instantiate(ctx context.Context) error {
	if l.tree.released {
		return ErrTreeReleased
	}
	if l.sealed {
		return fmt.Errorf("%w: %s", ErrLevelSealed, l.id)
	}
	order, err := l.instantiationOrder()
	if err != nil {
		return err
	}
	l.sealed = true

	logger := l.tree.settings.logger
	for _, d := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := d.New(declaredResolver{owner: d.Key, declared: d.Requires, level: l})
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrComponentConstructor, d.Key, err)
		}
		if value == nil {
			return fmt.Errorf("%w: %s constructor returned nil", ErrDescriptorInvalid, d.Key)
		}
		inst := &instance{key: d.Key, value: value}
		l.instances = append(l.instances, inst)
		l.byKey[d.Key] = inst
		logger.Debug("Instantiated component", "key", d.Key, "type", fmt.Sprintf("%T", value))
	}
	return nil
}

// instantiationOrder sorts the descriptors topologically. Among components
// whose dependencies are satisfied, registration order wins.
func (l *Level) instantiationOrder() ([]Descriptor, error) {
	n := len(l.descriptors)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, d := range l.descriptors {
		for _, dep := range d.Requires {
			if j, ok := l.keys[dep]; ok {
				indegree[i]++
				dependents[j] = append(dependents[j], i)
				continue
			}
			if !l.resolvableFromAncestors(dep) {
				return nil, fmt.Errorf("%w: %s required by %s in level %s", ErrUnresolvedDependency, dep, d.Key, l.id)
			}
		}
	}

	order := make([]Descriptor, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var cycle []string
			for i, d := range l.descriptors {
				if !done[i] {
					cycle = append(cycle, d.Key.String())
				}
			}
			return nil, fmt.Errorf("%w in level %s: %s", ErrCyclicDependency, l.id, strings.Join(cycle, ", "))
		}
		done[next] = true
		order = append(order, l.descriptors[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}
	return order, nil
}

// InstancesInStartOrder returns the instances of this level in the order
// they were built, which is also the order they are started in.
func (l *Level) InstancesInStartOrder() []any {
	values := make([]any, len(l.instances))
	for i, inst := range l.instances {
		values[i] = inst.value
	}
	return values
}

// InstancesInStopOrder returns the exact reverse of InstancesInStartOrder.
func (l *Level) InstancesInStopOrder() []any {
	values := l.InstancesInStartOrder()
	slices.Reverse(values)
	return values
}

// StartOrder returns the keys of the built instances in start order.
func (l *Level) StartOrder() []Key {
	keys := make([]Key, len(l.instances))
	for i, inst := range l.instances {
		keys[i] = inst.key
	}
	return keys
}
