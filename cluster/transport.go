package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// The membership service is declared by hand; its messages are
// structpb.Struct values so no generated code is needed.
const (
	membershipServiceName = "cecontainer.cluster.v1.Membership"
	joinMethod            = "/" + membershipServiceName + "/Join"
	leaveMethod           = "/" + membershipServiceName + "/Leave"
)

var errMissingNodeUUID = errors.New("membership message without node uuid")

// membershipHandler is implemented by the server side of a Member.
type membershipHandler interface {
	Join(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Leave(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var membershipServiceDesc = grpc.ServiceDesc{
	ServiceName: membershipServiceName,
	HandlerType: (*membershipHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Join", Handler: joinHandler},
		{MethodName: "Leave", Handler: leaveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cecontainer/cluster/membership",
}

func joinHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(membershipHandler).Join(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: joinMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(membershipHandler).Join(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func leaveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(membershipHandler).Leave(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: leaveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(membershipHandler).Leave(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// transport is the client side of the membership service.
type transport struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func newTransport() *transport {
	return &transport{conns: make(map[string]*grpc.ClientConn)}
}

func (t *transport) conn(addr string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial peer %s: %w", addr, err)
	}
	t.conns[addr] = conn
	return conn, nil
}

// join announces self to the member at addr and returns the nodes it knows.
func (t *transport) join(ctx context.Context, addr string, self Node) ([]Node, error) {
	conn, err := t.conn(addr)
	if err != nil {
		return nil, err
	}
	in, err := self.toStruct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, joinMethod, in, out); err != nil {
		return nil, err
	}
	return nodesFromStruct(out)
}

func (t *transport) leave(ctx context.Context, addr, uuid string) error {
	conn, err := t.conn(addr)
	if err != nil {
		return err
	}
	in, err := structpb.NewStruct(map[string]any{"uuid": uuid})
	if err != nil {
		return err
	}
	return conn.Invoke(ctx, leaveMethod, in, new(structpb.Struct))
}

func (t *transport) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for addr, conn := range t.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing connection to %s: %w", addr, err)
		}
		delete(t.conns, addr)
	}
	return firstErr
}

// Node is a compute engine known to the cluster.
type Node struct {
	UUID     string
	Address  string
	Workers  []string
	JoinedAt time.Time
}

func (n Node) toMap() map[string]any {
	workers := make([]any, len(n.Workers))
	for i, w := range n.Workers {
		workers[i] = w
	}
	return map[string]any{
		"uuid":      n.UUID,
		"address":   n.Address,
		"workers":   workers,
		"joined_at": n.JoinedAt.UnixMilli(),
	}
}

func (n Node) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(n.toMap())
}

func nodeFromStruct(s *structpb.Struct) (Node, error) {
	fields := s.GetFields()
	n := Node{
		UUID:     fields["uuid"].GetStringValue(),
		Address:  fields["address"].GetStringValue(),
		JoinedAt: time.UnixMilli(int64(fields["joined_at"].GetNumberValue())),
	}
	if n.UUID == "" {
		return Node{}, errMissingNodeUUID
	}
	for _, v := range fields["workers"].GetListValue().GetValues() {
		n.Workers = append(n.Workers, v.GetStringValue())
	}
	return n, nil
}

func nodesToStruct(nodes []Node) (*structpb.Struct, error) {
	list := make([]any, len(nodes))
	for i, n := range nodes {
		list[i] = n.toMap()
	}
	return structpb.NewStruct(map[string]any{"nodes": list})
}

func nodesFromStruct(s *structpb.Struct) ([]Node, error) {
	values := s.GetFields()["nodes"].GetListValue().GetValues()
	nodes := make([]Node, 0, len(values))
	for _, v := range values {
		n, err := nodeFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
