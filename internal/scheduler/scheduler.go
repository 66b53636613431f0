// Package scheduler drives executor instances through their lifecycle
// according to the run's concurrency policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wesleyorama2/stampede/internal/executor"
	"github.com/wesleyorama2/stampede/internal/metrics"
)

// Policy selects how executors are sequenced.
type Policy string

const (
	// PolicySequential starts each executor only after the previous one
	// reached a terminal state.
	PolicySequential Policy = "sequential"

	// PolicyParallel starts executors concurrently, subject to the
	// max-concurrency bound.
	PolicyParallel Policy = "parallel"
)

// Config contains scheduler tuning.
type Config struct {
	Policy Policy

	// MaxConcurrency bounds concurrently running executors under the
	// parallel policy (0 means unbounded)
	MaxConcurrency int

	// PollInterval is how often active drivers are polled
	PollInterval time.Duration

	// GracePeriod is how long Stop waits before escalating to a kill
	GracePeriod time.Duration

	// HeartbeatTimeout fails a running executor that shows no activity
	// for this long (0 disables the check)
	HeartbeatTimeout time.Duration
}

// Scheduler runs instances on a single serialized control loop: all
// Start/Poll/Stop calls and all aggregator ingestion happen from the
// goroutine calling Run, so the merged timeline has one writer.
type Scheduler struct {
	cfg Config
	agg *metrics.Aggregator
	log *log.Logger
}

// New creates a scheduler. Zero config fields get defaults.
func New(cfg Config, agg *metrics.Aggregator, logger *log.Logger) *Scheduler {
	if cfg.Policy == "" {
		cfg.Policy = PolicySequential
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{cfg: cfg, agg: agg, log: logger}
}

// Run drives every instance to a terminal state and returns once all are
// terminal. Individual failures do not abort the run; they are recorded
// on the instances and in the aggregate.
func (s *Scheduler) Run(ctx context.Context, instances []*executor.Instance) {
	switch s.cfg.Policy {
	case PolicyParallel:
		s.runParallel(ctx, instances)
	default:
		s.runSequential(ctx, instances)
	}
}

func (s *Scheduler) runSequential(ctx context.Context, instances []*executor.Instance) {
	for _, in := range instances {
		if ctx.Err() != nil {
			s.stopForContext(ctx, in)
			continue
		}
		s.runOne(ctx, in)
	}
}

// runOne supervises a single instance until it is terminal.
func (s *Scheduler) runOne(ctx context.Context, in *executor.Instance) {
	s.log.Info("starting executor", "executor", in.ID(), "type", in.Spec().Type)

	if err := in.Start(ctx); err != nil {
		s.log.Error("executor failed to start", "executor", in.ID(), "err", err)
		return
	}

	var deadline time.Time
	if timeout := in.Spec().Timeout; timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		select {
		case <-ctx.Done():
			s.stopForContext(ctx, in)
			return
		case <-time.After(s.cfg.PollInterval):
		}

		if s.pollOnce(in, deadline) {
			return
		}
	}
}

// pollOnce polls one active instance, ingests its samples and applies
// timeout and heartbeat policy. Returns true when the instance is
// terminal.
func (s *Scheduler) pollOnce(in *executor.Instance, deadline time.Time) bool {
	samples := in.Poll()
	if err := s.agg.Ingest(in.ID(), samples); err != nil {
		s.log.Warn("dropping late samples", "executor", in.ID(), "err", err)
	}

	if state := in.State(); state.Terminal() {
		s.logTerminal(in, state)
		return true
	}

	if !deadline.IsZero() && time.Now().After(deadline) {
		s.log.Warn("executor deadline exceeded", "executor", in.ID(),
			"timeout", in.Spec().Timeout)
		_ = in.Stop(executor.StateTimedOut, s.cfg.GracePeriod,
			&executor.TimeoutError{Executor: in.ID(), Limit: in.Spec().Timeout})
		return true
	}

	if hb := s.cfg.HeartbeatTimeout; hb > 0 && time.Since(in.LastActivity()) > hb {
		s.log.Error("executor unresponsive", "executor", in.ID(),
			"lastActivity", in.LastActivity())
		in.Fail(&executor.RuntimeError{Executor: in.ID(), Op: "heartbeat",
			Err: fmt.Errorf("no activity for %s", hb)})
		return true
	}

	return false
}

func (s *Scheduler) runParallel(ctx context.Context, instances []*executor.Instance) {
	pending := append([]*executor.Instance(nil), instances...)
	var active []*executor.Instance
	deadlines := make(map[string]time.Time)

	bound := s.cfg.MaxConcurrency
	if bound <= 0 {
		bound = len(instances)
	}

	for len(pending) > 0 || len(active) > 0 {
		if ctx.Err() != nil {
			for _, in := range active {
				s.stopForContext(ctx, in)
			}
			for _, in := range pending {
				s.stopForContext(ctx, in)
			}
			return
		}

		// Fill the active set up to the concurrency bound.
		for len(active) < bound && len(pending) > 0 {
			in := pending[0]
			pending = pending[1:]

			s.log.Info("starting executor", "executor", in.ID(), "type", in.Spec().Type)
			if err := in.Start(ctx); err != nil {
				s.log.Error("executor failed to start", "executor", in.ID(), "err", err)
				continue
			}
			if timeout := in.Spec().Timeout; timeout > 0 {
				deadlines[in.ID()] = time.Now().Add(timeout)
			}
			active = append(active, in)
		}

		select {
		case <-ctx.Done():
			continue
		case <-time.After(s.cfg.PollInterval):
		}

		remaining := active[:0]
		for _, in := range active {
			if s.pollOnce(in, deadlines[in.ID()]) {
				continue
			}
			remaining = append(remaining, in)
		}
		active = remaining
	}
}

// stopForContext stops an instance with the terminal state matching why
// the context ended: TimedOut when a deadline elapsed while it was
// active, Stopped for cancellation. An instance still Pending never ran,
// so a deadline cannot have elapsed on it; it is Stopped instead.
func (s *Scheduler) stopForContext(ctx context.Context, in *executor.Instance) {
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) &&
		in.State() != executor.StatePending {
		s.log.Warn("run deadline exceeded, stopping executor", "executor", in.ID())
		_ = in.Stop(executor.StateTimedOut, s.cfg.GracePeriod,
			&executor.TimeoutError{Executor: in.ID()})
		return
	}
	s.log.Warn("run ended, stopping executor", "executor", in.ID(),
		"state", in.State().String())
	_ = in.Stop(executor.StateStopped, s.cfg.GracePeriod,
		&executor.CancellationError{Executor: in.ID()})
}

func (s *Scheduler) logTerminal(in *executor.Instance, state executor.State) {
	switch state {
	case executor.StateCompleted:
		s.log.Info("executor completed", "executor", in.ID(),
			"samples", in.SampleCount())
	default:
		s.log.Error("executor ended abnormally", "executor", in.ID(),
			"state", state.String(), "err", in.Err())
	}
}
