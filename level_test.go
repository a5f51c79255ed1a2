package cecontainer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) (*Tree, *Level) {
	t.Helper()
	tree := NewTree()
	root, err := tree.CreateRoot(LevelPlatform)
	require.NoError(t, err)
	return tree, root
}

func TestLevelRejectsDuplicateKeys(t *testing.T) {
	_, root := newRoot(t)
	require.NoError(t, root.Register(Instance("db", 1)))

	err := root.Register(Instance("db", 2))
	assert.ErrorIs(t, err, ErrDuplicateComponent)
	assert.Equal(t, 1, root.Len())
}

func TestSameKeyAllowedInChildLevel(t *testing.T) {
	_, root := newRoot(t)
	require.NoError(t, root.Register(Instance("name", "root")))
	require.NoError(t, root.Instantiate(context.Background()))

	child := root.CreateChild(LevelMigration)
	require.NoError(t, child.Register(Instance("name", "child")))
	require.NoError(t, child.Instantiate(context.Background()))

	v, err := Get[string](child, "name")
	require.NoError(t, err)
	assert.Equal(t, "child", v)
	v, err = Get[string](root, "name")
	require.NoError(t, err)
	assert.Equal(t, "root", v)
}

func TestResolveWalksUpOnly(t *testing.T) {
	tree, root := newRoot(t)
	require.NoError(t, root.Register(Instance("config", "cfg")))
	require.NoError(t, root.Instantiate(context.Background()))

	child := root.CreateChild(LevelMigration)
	require.NoError(t, child.Register(Instance("child-only", 1)))
	require.NoError(t, child.Instantiate(context.Background()))

	sibling := root.CreateChild(LevelServices)
	require.NoError(t, sibling.Instantiate(context.Background()))

	v, err := child.Resolve("config")
	require.NoError(t, err)
	assert.Equal(t, "cfg", v)

	_, err = root.Resolve("child-only")
	assert.ErrorIs(t, err, ErrUnresolvedDependency, "a parent must not see its children")

	_, err = sibling.Resolve("child-only")
	assert.ErrorIs(t, err, ErrUnresolvedDependency, "siblings must not see each other")

	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 1, child.Depth())
	assert.Same(t, root, child.Parent())
	assert.Nil(t, root.Parent())
	assert.Len(t, tree.Levels(), 3)
	assert.Same(t, sibling, tree.Top())
}

func TestInstantiateFollowsDependencyOrder(t *testing.T) {
	rec := &recorder{}
	_, root := newRoot(t)
	require.NoError(t, root.Register(probeDesc("web", rec, "service", "cache")))
	require.NoError(t, root.Register(probeDesc("service", rec, "db")))
	require.NoError(t, root.Register(probeDesc("cache", rec)))
	require.NoError(t, root.Register(probeDesc("db", rec)))

	require.NoError(t, root.Instantiate(context.Background()))

	assert.Equal(t, []Key{"cache", "db", "service", "web"}, root.StartOrder())
	assert.Equal(t, []string{"cache", "db", "service", "web"}, rec.with("new:"))

	stop := root.InstancesInStopOrder()
	require.Len(t, stop, 4)
	assert.Equal(t, "web", stop[0].(*probe).name)
	assert.Equal(t, "cache", stop[3].(*probe).name)
}

func TestInstantiateKeepsRegistrationOrderWithoutDependencies(t *testing.T) {
	_, root := newRoot(t)
	for _, k := range []Key{"c", "a", "b"} {
		require.NoError(t, root.Register(Instance(k, string(k))))
	}
	require.NoError(t, root.Instantiate(context.Background()))

	assert.Equal(t, []Key{"c", "a", "b"}, root.StartOrder())
	assert.Equal(t, []Key{"c", "a", "b"}, root.Keys())
}

func TestInstantiateDetectsCycles(t *testing.T) {
	rec := &recorder{}
	_, root := newRoot(t)
	require.NoError(t, root.Register(probeDesc("free", rec)))
	require.NoError(t, root.Register(probeDesc("a", rec, "b")))
	require.NoError(t, root.Register(probeDesc("b", rec, "c")))
	require.NoError(t, root.Register(probeDesc("c", rec, "a")))

	err := root.Instantiate(context.Background())
	require.ErrorIs(t, err, ErrCyclicDependency)
	assert.Contains(t, err.Error(), "a, b, c")
	assert.Empty(t, rec.all(), "nothing is built when the order cannot be computed")
}

func TestInstantiateFailsOnUnresolvedDependency(t *testing.T) {
	rec := &recorder{}
	_, root := newRoot(t)
	require.NoError(t, root.Register(probeDesc("ok", rec)))
	require.NoError(t, root.Register(probeDesc("needs-missing", rec, "missing")))

	err := root.Instantiate(context.Background())
	require.ErrorIs(t, err, ErrUnresolvedDependency)
	assert.Contains(t, err.Error(), "missing")
	assert.Empty(t, rec.all())
}

func TestDependencyOnAncestorComponent(t *testing.T) {
	rec := &recorder{}
	_, root := newRoot(t)
	require.NoError(t, root.Register(probeDesc("db", rec)))
	require.NoError(t, root.Instantiate(context.Background()))

	child := root.CreateChild(LevelMigration)
	require.NoError(t, child.Register(Provide("dao", func(r Resolver) (any, error) {
		db, err := Get[*probe](r, "db")
		if err != nil {
			return nil, err
		}
		return &plain{name: "dao-on-" + db.name}, nil
	}, "db")))
	require.NoError(t, child.Instantiate(context.Background()))

	dao, err := Get[*plain](child, "dao")
	require.NoError(t, err)
	assert.Equal(t, "dao-on-db", dao.name)
}

func TestLevelSealedAfterInstantiate(t *testing.T) {
	_, root := newRoot(t)
	require.NoError(t, root.Instantiate(context.Background()))
	assert.True(t, root.Instantiated())

	assert.ErrorIs(t, root.Register(Instance("late", 1)), ErrLevelSealed)
	assert.ErrorIs(t, root.Instantiate(context.Background()), ErrLevelSealed)
}

func TestConstructorErrorsAreWrapped(t *testing.T) {
	_, root := newRoot(t)
	require.NoError(t, root.Register(Instance("first", 1)))
	require.NoError(t, root.Register(Provide("broken", func(Resolver) (any, error) { return nil, errBoom })))

	err := root.Instantiate(context.Background())
	assert.ErrorIs(t, err, ErrComponentConstructor)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []Key{"first"}, root.StartOrder())
}

func TestRegisterModuleChecksTargetLevel(t *testing.T) {
	_, root := newRoot(t)

	err := root.RegisterModule(NewModule("tasks", LevelTasks, Instance("queue", 1)))
	assert.ErrorIs(t, err, ErrModuleLevelMismatch)

	require.NoError(t, root.RegisterModule(NewModule("platform", LevelPlatform, Instance("props", 1), Instance("fs", 2))))
	assert.Equal(t, 2, root.Len())
	assert.True(t, root.Contains("fs"))
	assert.False(t, root.Contains("queue"))
}

func TestLevelIDString(t *testing.T) {
	assert.Equal(t, "platform", LevelPlatform.String())
	assert.Equal(t, "tasks", LevelTasks.String())
	assert.Equal(t, "level(9)", LevelID(9).String())
}
