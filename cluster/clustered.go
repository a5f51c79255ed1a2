package cluster

import (
	"context"
	"slices"
)

// ClusteredDistributedInformation shares worker information through the
// cluster Member. Only the oldest member may run the cleaning job.
type ClusteredDistributedInformation struct {
	member  *Member
	workers WorkerUUIDsProvider
	lock    *clusterLock
}

// NewClusteredDistributedInformation returns the cluster-backed implementation.
// The local workers are handed to the member so that its join announces them.
func NewClusteredDistributedInformation(member *Member, workers WorkerUUIDsProvider) *ClusteredDistributedInformation {
	member.SetLocalWorkers(workers.WorkerUUIDs())
	return &ClusteredDistributedInformation{
		member:  member,
		workers: workers,
		lock:    &clusterLock{member: member},
	}
}

// WorkerUUIDs returns the sorted union of the workers of every known node.
func (c *ClusteredDistributedInformation) WorkerUUIDs() []string {
	ids := slices.Clone(c.workers.WorkerUUIDs())
	for _, n := range c.member.Nodes() {
		ids = append(ids, n.Workers...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// BroadcastWorkerUUIDs publishes the local workers to the other members.
func (c *ClusteredDistributedInformation) BroadcastWorkerUUIDs(ctx context.Context) error {
	return c.member.Publish(ctx, c.workers.WorkerUUIDs())
}

// AcquireCleanJobLock returns a lock that is only granted to the leader.
func (c *ClusteredDistributedInformation) AcquireCleanJobLock() Lock {
	return c.lock
}

// Member returns the underlying cluster member.
func (c *ClusteredDistributedInformation) Member() *Member {
	return c.member
}

type clusterLock struct {
	member *Member
	local  localLock
}

func (l *clusterLock) TryLock() bool {
	if !l.member.IsLeader() {
		return false
	}
	return l.local.TryLock()
}

func (l *clusterLock) Unlock() {
	l.local.Unlock()
}
