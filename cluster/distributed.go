package cluster

import (
	"context"
	"sync"
)

// DistributedInformation gives access to information that must be consistent
// across the compute engine processes of a cluster.
type DistributedInformation interface {
	// WorkerUUIDs returns the worker UUIDs of every known compute engine.
	WorkerUUIDs() []string
	// BroadcastWorkerUUIDs publishes the local worker UUIDs.
	BroadcastWorkerUUIDs(ctx context.Context) error
	// AcquireCleanJobLock returns the lock guarding the cleaning job.
	AcquireCleanJobLock() Lock
}

// Lock is a non-blocking lock.
type Lock interface {
	TryLock() bool
	Unlock()
}

// WorkerUUIDsProvider exposes the UUIDs of the local workers.
type WorkerUUIDsProvider interface {
	WorkerUUIDs() []string
}

// localLock is a process-local Lock.
type localLock struct {
	mu sync.Mutex
}

func (l *localLock) TryLock() bool { return l.mu.TryLock() }
func (l *localLock) Unlock()       { l.mu.Unlock() }
