// Package health defines node health checks and their aggregation.
package health

import (
	"context"
	"time"
)

// Status is the health of a node or of a single check.
type Status string

const (
	StatusGreen  Status = "GREEN"
	StatusYellow Status = "YELLOW"
	StatusRed    Status = "RED"
)

func (s Status) severity() int {
	switch s {
	case StatusGreen:
		return 0
	case StatusYellow:
		return 1
	default:
		return 2
	}
}

// Worse returns the more severe of s and other.
func (s Status) Worse(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Checker defines the interface for individual health check implementations
type Checker interface {
	// Name returns the unique name of this health check
	Name() string

	// Check performs a health check and returns the current status
	Check(ctx context.Context) CheckResult
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status Status   `json:"status"`
	Causes []string `json:"causes,omitempty"`
}

// Green is a passing result.
func Green() CheckResult {
	return CheckResult{Status: StatusGreen}
}

// Red is a failing result with the given causes.
func Red(causes ...string) CheckResult {
	return CheckResult{Status: StatusRed, Causes: causes}
}

// NodeHealth is the aggregated health of the node.
type NodeHealth struct {
	Status    Status                 `json:"status"`
	Causes    []string               `json:"causes,omitempty"`
	Checks    map[string]CheckResult `json:"checks"`
	CheckedAt time.Time              `json:"checkedAt"`
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) CheckResult
}

// Name returns CheckName.
func (c CheckFunc) Name() string { return c.CheckName }

// Check calls Fn.
func (c CheckFunc) Check(ctx context.Context) CheckResult { return c.Fn(ctx) }
