package health

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Static errors for health package
var (
	ErrDuplicateCheck = errors.New("health check already registered")
	ErrInvalidCheck   = errors.New("invalid health check")
)

// Aggregator runs every registered check and keeps the worst status.
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
	now      func() time.Time
	last     *NodeHealth
}

// NewAggregator creates an aggregator. Each check is given at most timeout;
// zero means no limit.
func NewAggregator(timeout time.Duration) *Aggregator {
	return &Aggregator{timeout: timeout, now: time.Now}
}

// Register adds a check. Names must be unique.
func (a *Aggregator) Register(checker Checker) error {
	if checker == nil || checker.Name() == "" {
		return ErrInvalidCheck
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if slices.ContainsFunc(a.checkers, func(c Checker) bool { return c.Name() == checker.Name() }) {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, checker.Name())
	}
	a.checkers = append(a.checkers, checker)
	return nil
}

// CheckNode runs every check in registration order. A node without checks is
// GREEN.
func (a *Aggregator) CheckNode(ctx context.Context) NodeHealth {
	a.mu.RLock()
	checkers := slices.Clone(a.checkers)
	a.mu.RUnlock()

	node := NodeHealth{
		Status:    StatusGreen,
		Checks:    make(map[string]CheckResult, len(checkers)),
		CheckedAt: a.now(),
	}
	for _, c := range checkers {
		result := a.run(ctx, c)
		node.Checks[c.Name()] = result
		node.Status = node.Status.Worse(result.Status)
		node.Causes = append(node.Causes, result.Causes...)
	}

	a.mu.Lock()
	a.last = &node
	a.mu.Unlock()
	return node
}

// Last returns the result of the previous CheckNode, if any.
func (a *Aggregator) Last() (NodeHealth, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return NodeHealth{}, false
	}
	return *a.last, true
}

func (a *Aggregator) run(ctx context.Context, c Checker) CheckResult {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	result := c.Check(ctx)
	if result.Status == "" {
		result.Status = StatusRed
		result.Causes = append(result.Causes, c.Name()+" returned no status")
	}
	return result
}
