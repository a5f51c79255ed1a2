package cluster

import (
	"context"
	"slices"
)

// StandaloneDistributedInformation serves a single compute engine: the local
// workers are all the workers and the lock is held in memory.
type StandaloneDistributedInformation struct {
	workers WorkerUUIDsProvider
	lock    *localLock
}

// NewStandaloneDistributedInformation returns the single-process implementation.
func NewStandaloneDistributedInformation(workers WorkerUUIDsProvider) *StandaloneDistributedInformation {
	return &StandaloneDistributedInformation{workers: workers, lock: &localLock{}}
}

// WorkerUUIDs returns the local workers, sorted.
func (s *StandaloneDistributedInformation) WorkerUUIDs() []string {
	ids := slices.Clone(s.workers.WorkerUUIDs())
	slices.Sort(ids)
	return ids
}

// BroadcastWorkerUUIDs has nobody to tell.
func (s *StandaloneDistributedInformation) BroadcastWorkerUUIDs(context.Context) error {
	return nil
}

// AcquireCleanJobLock returns the in-memory lock of this process.
func (s *StandaloneDistributedInformation) AcquireCleanJobLock() Lock {
	return s.lock
}
