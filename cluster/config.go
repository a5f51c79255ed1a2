package cluster

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/cecontainer/props"
)

// NodeType is the role of a node in a cluster.
type NodeType string

const (
	NodeTypeApplication NodeType = "application"
	NodeTypeSearch      NodeType = "search"
)

const (
	DefaultPort        = 9003
	DefaultJoinTimeout = 30 * time.Second
)

// Config holds the cluster settings of the node.
type Config struct {
	Enabled     bool
	NodeType    NodeType
	Host        string
	Port        int
	Hosts       []string
	JoinTimeout time.Duration
}

// ConfigFromProps reads and validates the cluster settings. An enabled
// cluster must name the node type. It never touches the network.
func ConfigFromProps(p *props.Props) (Config, error) {
	enabled, err := p.Bool(props.ClusterEnabled, false)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidClusterConfig, err)
	}
	cfg := Config{
		Enabled:  enabled,
		NodeType: NodeTypeApplication,
		Host:     p.ValueOrDefault(props.ClusterNodeHost, ""),
		Hosts:    p.List(props.ClusterHosts),
	}
	if enabled {
		nodeType, err := p.NonNull(props.ClusterNodeType)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidClusterConfig, err)
		}
		cfg.NodeType = NodeType(strings.ToLower(nodeType))
	}
	if cfg.Port, err = p.Int(props.ClusterNodePort, DefaultPort); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidClusterConfig, err)
	}
	if cfg.JoinTimeout, err = p.Duration(props.ClusterJoinTimeout, DefaultJoinTimeout); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidClusterConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings of an enabled cluster. A disabled cluster is
// always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.NodeType != NodeTypeApplication {
		return fmt.Errorf("%w: node type %q cannot run the compute engine", ErrInvalidClusterConfig, c.NodeType)
	}
	if !validHost(c.Host) {
		return fmt.Errorf("%w: invalid node host %q", ErrInvalidClusterConfig, c.Host)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: node port %d out of range", ErrInvalidClusterConfig, c.Port)
	}
	if c.JoinTimeout <= 0 {
		return fmt.Errorf("%w: join timeout must be positive", ErrInvalidClusterConfig)
	}
	for _, seed := range c.Hosts {
		host, port, err := net.SplitHostPort(seed)
		if err != nil {
			return fmt.Errorf("%w: seed %q: %w", ErrInvalidClusterConfig, seed, err)
		}
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 || !validHost(host) {
			return fmt.Errorf("%w: invalid seed %q", ErrInvalidClusterConfig, seed)
		}
	}
	return nil
}

// Address returns host:port of the node.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}
