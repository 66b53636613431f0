// Package executor provides the driver abstraction over external
// load-generating tools and the lifecycle state machine that supervises
// them.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/stampede/internal/artifact"
	"github.com/wesleyorama2/stampede/internal/metrics"
)

// State represents the lifecycle state of an executor instance.
type State int32

const (
	// StatePending indicates the spec is validated but not yet launched.
	StatePending State = iota
	// StateStarting indicates launch was requested but the underlying
	// process is not yet confirmed alive.
	StateStarting
	// StateRunning indicates the underlying process is confirmed alive.
	StateRunning
	// StateCompleted indicates the process exited successfully.
	StateCompleted
	// StateFailed indicates the process exited with an error or became
	// unresponsive.
	StateFailed
	// StateTimedOut indicates a deadline elapsed while running.
	StateTimedOut
	// StateStopped indicates the run was cancelled externally before
	// natural completion.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateStopped:
		return true
	default:
		return false
	}
}

// Spec is one validated executor specification from the test plan.
type Spec struct {
	// Name identifies the execution in reports
	Name string

	// Type is the registered integration tag
	Type string

	// Timeout is the per-executor deadline (0 means none)
	Timeout time.Duration

	// Config holds the tool-specific configuration
	Config map[string]interface{}
}

// Driver is one runnable load-generating unit.
//
// Drivers own the mechanics of their underlying tool: how it is launched,
// how liveness is observed and how measurements are harvested. The
// scheduler talks to drivers only through this capability set.
type Driver interface {
	// Start launches the underlying tool, writing its output under dir.
	// A second call returns an error rather than launching twice.
	Start(ctx context.Context, dir *artifact.Dir) error

	// Poll is non-blocking. It returns the driver's current state
	// (Running, Completed or Failed) plus whatever new samples were
	// produced since the previous poll.
	Poll() (State, []metrics.Sample)

	// Stop requests graceful termination, escalating to a kill when the
	// grace period elapses. Safe to call on a driver that never started
	// or already exited.
	Stop(grace time.Duration) error

	// Harvest collects final artifacts and error diagnostics. It is
	// called once the driver is no longer running, including after a
	// forced Stop, to salvage partial output.
	Harvest() (*Harvest, error)
}

// Harvest is the post-run result of one driver.
type Harvest struct {
	// Files lists artifact file names left in the executor's directory
	Files []string `json:"files,omitempty"`

	// Diagnostics holds human-readable failure context (stderr tails,
	// failed step names)
	Diagnostics []string `json:"diagnostics,omitempty"`

	// ExitCode is the underlying process exit code (-1 when unknown)
	ExitCode int `json:"exitCode"`
}

// EnvironmentError indicates a per-executor environment problem such as a
// missing tool binary. Other executors continue.
type EnvironmentError struct {
	Executor string
	Reason   string
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment error for %s: %s", e.Executor, e.Reason)
}

// RuntimeError indicates an underlying process or handle failure during
// Start, Poll or Harvest.
type RuntimeError struct {
	Executor string
	Op       string
	Err      error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("executor %s: %s: %v", e.Executor, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a per-executor or global deadline elapsed.
type TimeoutError struct {
	Executor string
	Limit    time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("executor %s exceeded deadline of %s", e.Executor, e.Limit)
	}
	return fmt.Sprintf("executor %s exceeded run deadline", e.Executor)
}

// CancellationError indicates the run was interrupted externally.
type CancellationError struct {
	Executor string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("executor %s was cancelled", e.Executor)
}
