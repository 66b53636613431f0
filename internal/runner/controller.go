// Package runner contains the top-level run controller: it loads the
// plan, resolves drivers, drives the scheduler and writes the final
// artifacts.
package runner

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/wesleyorama2/stampede/internal/artifact"
	"github.com/wesleyorama2/stampede/internal/config"
	"github.com/wesleyorama2/stampede/internal/executor"
	"github.com/wesleyorama2/stampede/internal/metrics"
	"github.com/wesleyorama2/stampede/internal/report"
	"github.com/wesleyorama2/stampede/internal/scheduler"
)

// Controller coordinates a whole run.
type Controller struct {
	// Registry resolves executor type tags (defaults to the built-ins)
	Registry *executor.Registry

	// LogWriter receives the run log in addition to the consolidated
	// log file (defaults to stderr)
	LogWriter io.Writer

	// LogFile overrides the consolidated run log path
	LogFile string
}

// RunResult is what a completed (or aborted) run produced.
type RunResult struct {
	RunID     string
	RunDir    string
	Report    *metrics.Report
	Document  *report.Document
	Instances []*executor.Instance
	ExitCode  int
}

// RunPlan executes a validated test plan end to end.
//
// The plan is re-validated against the registry before anything is
// launched: configuration errors abort the run with no artifacts beyond
// the run directory. After the scheduler finishes, the final report is
// always written, even when executors failed or the run was cancelled.
func (c *Controller) RunPlan(ctx context.Context, plan *config.TestPlan) (*RunResult, error) {
	registry := c.Registry
	if registry == nil {
		registry = executor.DefaultRegistry()
	}

	specs, err := buildSpecs(plan)
	if err != nil {
		return nil, err
	}

	// Resolve every driver eagerly; a structural misconfiguration in any
	// spec rejects the whole plan before a single process launches.
	drivers := make([]executor.Driver, len(specs))
	for i, spec := range specs {
		driver, err := registry.Resolve(spec)
		if err != nil {
			return nil, err
		}
		drivers[i] = driver
	}

	store, err := artifact.NewStore(plan.Settings.ArtifactsDir)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := c.openRunLog(store, plan.Settings.LogFile)
	if err != nil {
		return nil, err
	}
	defer closeLog()

	logger.Info("run starting", "run", store.RunID(),
		"plan", plan.Name, "executions", len(specs),
		"policy", plan.Settings.Policy)

	instances := make([]*executor.Instance, len(specs))
	for i, spec := range specs {
		dir, err := store.ExecutorDir(spec.Name)
		if err != nil {
			return nil, err
		}
		instances[i] = executor.NewInstance(spec, drivers[i], dir)
	}

	spool, err := store.CreateFile("samples.jsonl")
	if err != nil {
		return nil, err
	}
	defer spool.Close()

	agg := metrics.NewAggregator(spool)

	runCtx := ctx
	if plan.Settings.Timeout != "" {
		timeout, _ := config.ParseDurationString(plan.Settings.Timeout)
		if timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	sched := scheduler.New(schedulerConfig(plan), agg, logger)
	sched.Run(runCtx, instances)

	result := &RunResult{
		RunID:     store.RunID(),
		RunDir:    store.Dir(),
		Report:    agg.Finalize(),
		Instances: instances,
	}
	result.ExitCode = exitCode(instances, plan.Settings.BestEffort)
	result.Document = buildDocument(plan, result)

	if err := report.WriteJSON(result.Document, store.ReportPath("report.json")); err != nil {
		logger.Error("failed to write JSON report", "err", err)
	}
	if err := report.WriteHTML(result.Document, store.ReportPath("report.html")); err != nil {
		logger.Error("failed to write HTML report", "err", err)
	}

	logger.Info("run finished", "run", store.RunID(),
		"samples", result.Report.TotalSamples, "exitCode", result.ExitCode)

	return result, nil
}

// openRunLog builds the run logger writing to both the controller's
// writer and the consolidated log file.
func (c *Controller) openRunLog(store *artifact.Store, override string) (*log.Logger, func(), error) {
	base := c.LogWriter
	if base == nil {
		base = os.Stderr
	}

	path := c.LogFile
	if path == "" {
		path = override
	}
	if path == "" {
		path = store.RunLogPath()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, &artifact.EnvironmentError{Path: path, Reason: err.Error()}
	}

	logger := log.NewWithOptions(io.MultiWriter(base, f), log.Options{
		ReportTimestamp: true,
	})
	return logger, func() { f.Close() }, nil
}

// buildSpecs converts plan executions into executor specs. Durations
// were already syntax-checked by plan validation.
func buildSpecs(plan *config.TestPlan) ([]*executor.Spec, error) {
	specs := make([]*executor.Spec, len(plan.Executions))
	for i, exec := range plan.Executions {
		spec := &executor.Spec{
			Name:   exec.Name,
			Type:   exec.Executor,
			Config: exec.Config,
		}
		if spec.Config == nil {
			spec.Config = map[string]interface{}{}
		}
		if exec.Timeout != "" {
			timeout, err := config.ParseDurationString(exec.Timeout)
			if err != nil {
				return nil, &config.ValidationError{
					Field:   "executions." + exec.Name + ".timeout",
					Message: err.Error(),
				}
			}
			spec.Timeout = timeout
		}
		specs[i] = spec
	}
	return specs, nil
}

func schedulerConfig(plan *config.TestPlan) scheduler.Config {
	cfg := scheduler.Config{
		Policy:         scheduler.Policy(plan.Settings.Policy),
		MaxConcurrency: plan.Settings.MaxConcurrency,
	}
	if d, err := config.ParseDurationString(plan.Settings.PollInterval); err == nil {
		cfg.PollInterval = d
	}
	if d, err := config.ParseDurationString(plan.Settings.GracePeriod); err == nil {
		cfg.GracePeriod = d
	}
	if d, err := config.ParseDurationString(plan.Settings.HeartbeatTimeout); err == nil {
		cfg.HeartbeatTimeout = d
	}
	return cfg
}

// exitCode implements the run's exit status policy: zero when every
// executor completed (or the plan was empty); in best-effort mode, zero
// when at least one completed.
func exitCode(instances []*executor.Instance, bestEffort bool) int {
	completed := 0
	for _, in := range instances {
		if in.State() == executor.StateCompleted {
			completed++
		}
	}

	if completed == len(instances) {
		return 0
	}
	if bestEffort && completed > 0 {
		return 0
	}
	return 1
}

// buildDocument assembles the report document from run state.
func buildDocument(plan *config.TestPlan, result *RunResult) *report.Document {
	doc := &report.Document{
		RunID:     result.RunID,
		Plan:      plan.Name,
		Policy:    plan.Settings.Policy,
		StartTime: result.Report.StartTime,
		EndTime:   result.Report.EndTime,
		Duration:  result.Report.Duration,
		Metrics:   result.Report,
		ExitCode:  result.ExitCode,
		Success:   result.ExitCode == 0,
	}

	for _, in := range result.Instances {
		entry := report.ExecutorResult{
			ID:          in.ID(),
			Name:        in.Spec().Name,
			Type:        in.Spec().Type,
			State:       in.State().String(),
			SampleCount: in.SampleCount(),
			Artifacts:   in.Dir().Path(),
		}
		if err := in.Err(); err != nil {
			entry.Error = err.Error()
		}
		if h := in.Harvest(); h != nil {
			entry.ExitCode = h.ExitCode
			entry.Files = h.Files
			entry.Diagnostics = h.Diagnostics
		}
		if at, ok := in.TransitionTime(executor.StateStarting); ok {
			entry.StartedAt = at
		}
		if trs := in.Transitions(); len(trs) > 0 {
			last := trs[len(trs)-1]
			if last.To.Terminal() {
				entry.EndedAt = last.At
			}
		}
		doc.Executors = append(doc.Executors, entry)
	}

	return doc
}
