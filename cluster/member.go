package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoCodeAlone/cecontainer"
)

const (
	defaultRetryInterval = 200 * time.Millisecond
	attemptTimeout       = time.Second
	leaveTimeout         = 2 * time.Second
)

// MemberOption configures a Member.
type MemberOption func(*Member)

// WithMemberLogger sets the member logger.
func WithMemberLogger(logger cecontainer.Logger) MemberOption {
	return func(m *Member) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRetryInterval sets the pause between two rounds of join attempts.
func WithRetryInterval(d time.Duration) MemberOption {
	return func(m *Member) {
		if d > 0 {
			m.retryInterval = d
		}
	}
}

// Member is this process's membership in the compute engine cluster. It
// serves the membership endpoint on the node address and joins the seeds
// on Start.
type Member struct {
	cfg           Config
	logger        cecontainer.Logger
	retryInterval time.Duration
	transport     *transport

	mu       sync.RWMutex
	self     Node
	nodes    map[string]Node
	server   *grpc.Server
	listener net.Listener
	serveErr chan error
}

// NewMember creates a member for cfg. Nothing is bound until Start.
func NewMember(cfg Config, opts ...MemberOption) *Member {
	m := &Member{
		cfg:           cfg,
		logger:        cecontainer.NopLogger{},
		retryInterval: defaultRetryInterval,
		transport:     newTransport(),
		self:          Node{UUID: uuid.NewString()},
		nodes:         make(map[string]Node),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UUID returns the node UUID.
func (m *Member) UUID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self.UUID
}

// Address returns the bound address, which is empty before Start.
func (m *Member) Address() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self.Address
}

// SetLocalWorkers records the workers announced by the next join or publish.
func (m *Member) SetLocalWorkers(workers []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.self.Workers = slices.Clone(workers)
}

// Nodes returns every known node, this one included, oldest first.
func (m *Member) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedNodesLocked()
}

func (m *Member) sortedNodesLocked() []Node {
	nodes := make([]Node, 0, len(m.nodes)+1)
	nodes = append(nodes, m.self)
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b Node) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		switch {
		case a.UUID < b.UUID:
			return -1
		case a.UUID > b.UUID:
			return 1
		}
		return 0
	})
	return nodes
}

// IsLeader reports whether this node is the oldest known member.
func (m *Member) IsLeader() bool {
	nodes := m.Nodes()
	return len(nodes) > 0 && nodes[0].UUID == m.UUID()
}

// Start binds the node address, serves the membership endpoint and joins the
// cluster through the configured seeds. Without seeds a new cluster is formed.
func (m *Member) Start(ctx context.Context) error {
	addr := m.cfg.Address()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: cannot bind %s: %w", ErrInvalidClusterConfig, addr, err)
	}

	server := grpc.NewServer()
	server.RegisterService(&membershipServiceDesc, &membershipServer{member: m})

	m.mu.Lock()
	m.self.Address = lis.Addr().String()
	m.self.JoinedAt = time.UnixMilli(time.Now().UnixMilli())
	m.listener = lis
	m.server = server
	m.serveErr = make(chan error, 1)
	serveErr := m.serveErr
	m.mu.Unlock()

	go func() {
		serveErr <- server.Serve(lis)
	}()
	m.logger.Info("Cluster member listening", "address", m.Address(), "uuid", m.UUID())

	seeds := m.seeds()
	if len(seeds) == 0 {
		m.logger.Info("No cluster seed configured, forming a new cluster", "uuid", m.UUID())
		return nil
	}
	if err := m.join(ctx, seeds); err != nil {
		m.shutdown()
		return err
	}
	return nil
}

func (m *Member) seeds() []string {
	self := m.Address()
	var seeds []string
	for _, s := range m.cfg.Hosts {
		if s != self && s != m.cfg.Address() {
			seeds = append(seeds, s)
		}
	}
	return seeds
}

func (m *Member) join(ctx context.Context, seeds []string) error {
	joinCtx, cancel := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancel()

	var lastErr error
	for {
		for _, seed := range seeds {
			attemptCtx, attemptCancel := context.WithTimeout(joinCtx, attemptTimeout)
			nodes, err := m.transport.join(attemptCtx, seed, m.snapshotSelf())
			attemptCancel()
			if err == nil {
				m.merge(nodes)
				m.logger.Info("Joined cluster", "seed", seed, "members", len(m.Nodes()))
				m.announce(joinCtx, seed)
				return nil
			}
			lastErr = err
			m.logger.Debug("Cluster seed did not answer", "seed", seed, "error", err)
		}

		select {
		case <-joinCtx.Done():
			return fmt.Errorf("%w: no seed of %v answered within %s: %w", ErrClusterJoinTimeout, seeds, m.cfg.JoinTimeout, lastErr)
		case <-time.After(m.retryInterval):
		}
	}
}

// announce tells the members learnt from seed about this node.
func (m *Member) announce(ctx context.Context, skip string) {
	for _, n := range m.Nodes() {
		if n.UUID == m.UUID() || n.Address == skip {
			continue
		}
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		nodes, err := m.transport.join(attemptCtx, n.Address, m.snapshotSelf())
		cancel()
		if err != nil {
			m.logger.Warn("Failed to announce to cluster member", "member", n.Address, "error", err)
			continue
		}
		m.merge(nodes)
	}
}

// Publish sends the local workers to every other known member.
func (m *Member) Publish(ctx context.Context, workers []string) error {
	m.mu.Lock()
	if m.server == nil {
		m.mu.Unlock()
		return ErrMemberNotStarted
	}
	m.self.Workers = slices.Clone(workers)
	m.mu.Unlock()

	var errs []error
	for _, n := range m.Nodes() {
		if n.UUID == m.UUID() {
			continue
		}
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		nodes, err := m.transport.join(attemptCtx, n.Address, m.snapshotSelf())
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("publish to %s: %w", n.Address, err))
			continue
		}
		m.merge(nodes)
	}
	return errors.Join(errs...)
}

func (m *Member) snapshotSelf() Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	self := m.self
	self.Workers = slices.Clone(m.self.Workers)
	return self
}

func (m *Member) merge(nodes []Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range nodes {
		if n.UUID == m.self.UUID {
			continue
		}
		m.nodes[n.UUID] = n
	}
}

func (m *Member) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
}

// Stop leaves the cluster and stops serving. Leave failures are logged only.
func (m *Member) Stop(ctx context.Context) error {
	m.mu.RLock()
	started := m.server != nil
	m.mu.RUnlock()
	if !started {
		return nil
	}

	for _, n := range m.Nodes() {
		if n.UUID == m.UUID() {
			continue
		}
		leaveCtx, cancel := context.WithTimeout(ctx, leaveTimeout)
		if err := m.transport.leave(leaveCtx, n.Address, m.UUID()); err != nil {
			m.logger.Warn("Failed to leave cluster member", "member", n.Address, "error", err)
		}
		cancel()
	}
	m.shutdown()
	m.logger.Info("Cluster member stopped", "uuid", m.UUID())
	return nil
}

func (m *Member) shutdown() {
	m.mu.Lock()
	server, serveErr := m.server, m.serveErr
	m.server, m.listener, m.serveErr = nil, nil, nil
	m.mu.Unlock()
	if server == nil {
		return
	}
	server.GracefulStop()
	if err := <-serveErr; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		m.logger.Warn("Membership server stopped with error", "error", err)
	}
}

// Close stops serving if needed and releases client connections.
func (m *Member) Close() error {
	m.shutdown()
	return m.transport.close()
}

// membershipServer is the server side of the membership endpoint.
type membershipServer struct {
	member *Member
}

func (s *membershipServer) Join(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n, err := nodeFromStruct(in)
	if err != nil {
		return nil, err
	}
	s.member.merge([]Node{n})
	s.member.logger.Debug("Cluster member joined", "member", n.Address, "uuid", n.UUID, "workers", len(n.Workers))
	return nodesToStruct(s.member.Nodes())
}

func (s *membershipServer) Leave(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["uuid"].GetStringValue()
	if id == "" {
		return nil, errMissingNodeUUID
	}
	s.member.remove(id)
	s.member.logger.Debug("Cluster member left", "uuid", id)
	return &structpb.Struct{}, nil
}
