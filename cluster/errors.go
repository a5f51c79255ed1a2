package cluster

import "errors"

var (
	// ErrInvalidClusterConfig is returned for cluster settings that cannot
	// work: bad node type, host, port or seeds, or a bind failure.
	ErrInvalidClusterConfig = errors.New("invalid cluster configuration")
	// ErrClusterJoinTimeout is returned when no seed answered in time.
	ErrClusterJoinTimeout = errors.New("cluster join timed out")
	// ErrMemberNotStarted is returned by operations needing a running member.
	ErrMemberNotStarted = errors.New("cluster member not started")
)
