package cluster

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

func loopbackConfig(t *testing.T, seeds ...string) Config {
	t.Helper()
	return Config{
		Enabled:     true,
		NodeType:    NodeTypeApplication,
		Host:        "127.0.0.1",
		Port:        freePort(t),
		Hosts:       seeds,
		JoinTimeout: 5 * time.Second,
	}
}

func startMember(t *testing.T, cfg Config) *Member {
	t.Helper()
	m := NewMember(cfg, WithRetryInterval(20*time.Millisecond))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		_ = m.Close()
	})
	return m
}

func TestMemberWithoutSeedsFormsCluster(t *testing.T) {
	m := startMember(t, loopbackConfig(t))

	assert.NotEmpty(t, m.Address())
	nodes := m.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, m.UUID(), nodes[0].UUID)
	assert.True(t, m.IsLeader())
}

func TestMemberJoinsThroughSeed(t *testing.T) {
	first := startMember(t, loopbackConfig(t))
	first.SetLocalWorkers([]string{"w-first"})
	time.Sleep(5 * time.Millisecond) // join times have millisecond precision

	second := NewMember(loopbackConfig(t, first.Address()))
	second.SetLocalWorkers([]string{"w-second"})
	require.NoError(t, second.Start(context.Background()))
	defer second.Close()

	require.Len(t, second.Nodes(), 2)
	assert.Eventually(t, func() bool { return len(first.Nodes()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, first.IsLeader(), "the first member is the oldest")
	assert.False(t, second.IsLeader())

	var seenByFirst []string
	for _, n := range first.Nodes() {
		seenByFirst = append(seenByFirst, n.Workers...)
	}
	assert.ElementsMatch(t, []string{"w-first", "w-second"}, seenByFirst)

	require.NoError(t, second.Publish(context.Background(), []string{"w-second", "w-third"}))
	assert.Eventually(t, func() bool {
		for _, n := range first.Nodes() {
			if n.UUID == second.UUID() {
				return len(n.Workers) == 2
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, second.Stop(context.Background()))
	assert.Eventually(t, func() bool { return len(first.Nodes()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestMemberJoinTimeout(t *testing.T) {
	deadSeed := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
	cfg := loopbackConfig(t, deadSeed)
	cfg.JoinTimeout = 300 * time.Millisecond

	m := NewMember(cfg, WithRetryInterval(20*time.Millisecond))
	start := time.Now()
	err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrClusterJoinTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NoError(t, m.Close())

	// The address is released after a failed start.
	lis, err := net.Listen("tcp", cfg.Address())
	require.NoError(t, err)
	require.NoError(t, lis.Close())
}

func TestMemberBindFailureIsInvalidConfig(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	cfg := loopbackConfig(t)
	cfg.Port = lis.Addr().(*net.TCPAddr).Port
	err = NewMember(cfg).Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidClusterConfig)
}

func TestPublishBeforeStart(t *testing.T) {
	m := NewMember(loopbackConfig(t))
	assert.ErrorIs(t, m.Publish(context.Background(), nil), ErrMemberNotStarted)
	assert.NoError(t, m.Stop(context.Background()))
	assert.NoError(t, m.Close())
}
