package cluster

import (
	"sync"

	"github.com/GoCodeAlone/cecontainer"
)

// Component keys bound by the selector. The distributed information key is
// the same in both modes.
const (
	KeyDistributedInformation cecontainer.Key = "ce.distributedInformation"
	KeyMember                 cecontainer.Key = "ce.clusterMember"
)

// Mode is the outcome of the cluster mode selection.
type Mode int

const (
	ModeStandalone Mode = iota
	ModeClustered
)

func (m Mode) String() string {
	if m == ModeClustered {
		return "clustered"
	}
	return "standalone"
}

// Binding is the selected distributed information implementation, ready to
// be registered in the tasks level.
type Binding struct {
	Mode   Mode
	Module cecontainer.Module
}

// Selector picks the distributed information implementation from the
// cluster configuration. The decision is made once and cached.
type Selector struct {
	cfg        Config
	workersKey cecontainer.Key
	opts       []MemberOption

	once    sync.Once
	binding Binding
}

// NewSelector creates a selector. workersKey names the component providing
// the local worker UUIDs; member options apply to the clustered variant.
func NewSelector(cfg Config, workersKey cecontainer.Key, opts ...MemberOption) *Selector {
	return &Selector{cfg: cfg, workersKey: workersKey, opts: opts}
}

// Select returns the binding. Exactly one implementation is ever bound under
// KeyDistributedInformation; KeyMember only exists in clustered mode.
func (s *Selector) Select() Binding {
	s.once.Do(func() {
		if s.cfg.Enabled {
			s.binding = Binding{Mode: ModeClustered, Module: s.clustered()}
			return
		}
		s.binding = Binding{Mode: ModeStandalone, Module: s.standalone()}
	})
	return s.binding
}

func (s *Selector) standalone() cecontainer.Module {
	return cecontainer.NewModule("standalone-distributed-information", cecontainer.LevelTasks,
		cecontainer.Provide(KeyDistributedInformation, func(r cecontainer.Resolver) (any, error) {
			workers, err := cecontainer.Get[WorkerUUIDsProvider](r, s.workersKey)
			if err != nil {
				return nil, err
			}
			return NewStandaloneDistributedInformation(workers), nil
		}, s.workersKey),
	)
}

func (s *Selector) clustered() cecontainer.Module {
	return cecontainer.NewModule("clustered-distributed-information", cecontainer.LevelTasks,
		cecontainer.Provide(KeyMember, func(cecontainer.Resolver) (any, error) {
			return NewMember(s.cfg, s.opts...), nil
		}),
		cecontainer.Provide(KeyDistributedInformation, func(r cecontainer.Resolver) (any, error) {
			member, err := cecontainer.Get[*Member](r, KeyMember)
			if err != nil {
				return nil, err
			}
			workers, err := cecontainer.Get[WorkerUUIDsProvider](r, s.workersKey)
			if err != nil {
				return nil, err
			}
			return NewClusteredDistributedInformation(member, workers), nil
		}, KeyMember, s.workersKey),
	)
}
