package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/stampede/internal/artifact"
	"github.com/wesleyorama2/stampede/internal/metrics"
)

// Instance is the runtime handle to one launched driver.
//
// The instance owns the lifecycle state machine: transitions happen here
// and terminal states are final regardless of what the driver or the
// scheduler later asks for. Stop is idempotent.
type Instance struct {
	spec   *Spec
	driver Driver
	dir    *artifact.Dir

	state atomic.Int32

	mu          sync.Mutex
	transitions []Transition
	err         error
	harvest     *Harvest
	harvested   bool

	sampleCount  atomic.Int64
	lastActivity atomic.Int64 // unix nanos
}

// Transition records one state change and when it happened.
type Transition struct {
	To State
	At time.Time
}

// NewInstance creates a Pending instance owning the given driver and
// artifact subdirectory.
func NewInstance(spec *Spec, driver Driver, dir *artifact.Dir) *Instance {
	in := &Instance{
		spec:   spec,
		driver: driver,
		dir:    dir,
	}
	in.state.Store(int32(StatePending))
	in.transitions = []Transition{{To: StatePending, At: time.Now()}}
	in.lastActivity.Store(time.Now().UnixNano())
	return in
}

// ID returns the instance identifier, unique within the run (it is the
// artifact subdirectory name).
func (in *Instance) ID() string {
	return in.dir.Name()
}

// Spec returns the executor specification.
func (in *Instance) Spec() *Spec {
	return in.spec
}

// Dir returns the instance's artifact subdirectory.
func (in *Instance) Dir() *artifact.Dir {
	return in.dir
}

// State returns the current lifecycle state.
func (in *Instance) State() State {
	return State(in.state.Load())
}

// Err returns the error recorded for a Failed, TimedOut or Stopped
// instance, nil otherwise.
func (in *Instance) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

// Harvest returns the driver's harvest, nil until the instance is
// terminal.
func (in *Instance) Harvest() *Harvest {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.harvest
}

// SampleCount returns the number of samples delivered so far.
func (in *Instance) SampleCount() int64 {
	return in.sampleCount.Load()
}

// LastActivity returns the last time the instance showed signs of life
// (start, samples, or output growth).
func (in *Instance) LastActivity() time.Time {
	return time.Unix(0, in.lastActivity.Load())
}

// Transitions returns a copy of the recorded state transitions.
func (in *Instance) Transitions() []Transition {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]Transition, len(in.transitions))
	copy(out, in.transitions)
	return out
}

// TransitionTime returns when the instance first entered the given state.
func (in *Instance) TransitionTime(s State) (time.Time, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, tr := range in.transitions {
		if tr.To == s {
			return tr.At, true
		}
	}
	return time.Time{}, false
}

// transition moves to the target state unless already terminal. Returns
// whether the transition happened.
func (in *Instance) transition(to State) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.transitionLocked(to)
}

func (in *Instance) transitionLocked(to State) bool {
	current := State(in.state.Load())
	if current.Terminal() || current == to {
		return false
	}
	in.state.Store(int32(to))
	in.transitions = append(in.transitions, Transition{To: to, At: time.Now()})
	return true
}

// Start drives Pending -> Starting -> Running (or Failed on launch
// error). A second call returns an error without touching the driver.
func (in *Instance) Start(ctx context.Context) error {
	if in.State() != StatePending {
		return &RuntimeError{Executor: in.ID(), Op: "start",
			Err: errAlreadyStarted}
	}
	in.transition(StateStarting)

	if err := in.driver.Start(ctx, in.dir); err != nil {
		in.failLocked(err)
		return err
	}

	in.transition(StateRunning)
	in.lastActivity.Store(time.Now().UnixNano())
	return nil
}

// Poll forwards to the driver and applies any natural terminal state it
// reports. Non-blocking; returns the new samples for ingestion.
func (in *Instance) Poll() []metrics.Sample {
	if in.State() != StateRunning {
		return nil
	}

	driverState, samples := in.driver.Poll()
	if len(samples) > 0 {
		in.sampleCount.Add(int64(len(samples)))
		in.lastActivity.Store(time.Now().UnixNano())
	}

	if driverState.Terminal() {
		in.mu.Lock()
		if in.transitionLocked(driverState) && driverState == StateFailed {
			in.err = &RuntimeError{Executor: in.ID(), Op: "run",
				Err: errNonZeroExit}
		}
		in.mu.Unlock()
		in.finishHarvest()
	}

	return samples
}

// Stop terminates the instance with the given terminal reason (TimedOut
// or Stopped), waiting up to grace for a clean exit. Calling Stop on an
// already-terminal instance is a no-op returning nil.
func (in *Instance) Stop(reason State, grace time.Duration, cause error) error {
	in.mu.Lock()
	if State(in.state.Load()).Terminal() {
		in.mu.Unlock()
		return nil
	}
	in.transitionLocked(reason)
	if in.err == nil {
		in.err = cause
	}
	in.mu.Unlock()

	stopErr := in.driver.Stop(grace)
	in.finishHarvest()
	return stopErr
}

// Fail marks the instance Failed with the given cause, stopping the
// driver if it is still running. Used for heartbeat escalation.
func (in *Instance) Fail(cause error) {
	in.mu.Lock()
	if State(in.state.Load()).Terminal() {
		in.mu.Unlock()
		return
	}
	in.transitionLocked(StateFailed)
	if in.err == nil {
		in.err = cause
	}
	in.mu.Unlock()

	_ = in.driver.Stop(0)
	in.finishHarvest()
}

func (in *Instance) failLocked(cause error) {
	in.mu.Lock()
	in.transitionLocked(StateFailed)
	if in.err == nil {
		in.err = cause
	}
	in.mu.Unlock()
	in.finishHarvest()
}

// finishHarvest salvages artifacts exactly once after the instance
// reaches a terminal state.
func (in *Instance) finishHarvest() {
	in.mu.Lock()
	if in.harvested {
		in.mu.Unlock()
		return
	}
	in.harvested = true
	in.mu.Unlock()

	harvest, err := in.driver.Harvest()

	in.mu.Lock()
	defer in.mu.Unlock()
	in.harvest = harvest
	if err != nil && in.err == nil {
		in.err = &RuntimeError{Executor: in.ID(), Op: "harvest", Err: err}
	}
}

var (
	errAlreadyStarted = errorString("instance already started")
	errNonZeroExit    = errorString("tool exited with non-zero code")
)

type errorString string

func (e errorString) Error() string { return string(e) }
