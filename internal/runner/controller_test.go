package runner_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/stampede/internal/config"
	"github.com/wesleyorama2/stampede/internal/executor"
	"github.com/wesleyorama2/stampede/internal/runner"
)

// reportingCommand emits two CSV records through the report file the
// orchestrator hands the tool via STAMPEDE_REPORT.
const reportingCommand = `now=$(date +%s)000; ` +
	`echo "$now,12.5,ok" >> "$STAMPEDE_REPORT"; ` +
	`echo "$now,40.0,err" >> "$STAMPEDE_REPORT"`

func testPlan(dir string, execs ...*config.ExecutionConfig) *config.TestPlan {
	return &config.TestPlan{
		Name: "controller-test",
		Settings: config.GlobalSettings{
			ArtifactsDir: dir,
			Policy:       config.PolicySequential,
			PollInterval: "5ms",
			GracePeriod:  "100ms",
		},
		Executions: execs,
	}
}

func commandExec(name, cmd string, extra map[string]interface{}) *config.ExecutionConfig {
	cfg := map[string]interface{}{"cmd": cmd}
	for k, v := range extra {
		cfg[k] = v
	}
	return &config.ExecutionConfig{Executor: "command", Name: name, Config: cfg}
}

func runPlan(t *testing.T, plan *config.TestPlan) *runner.RunResult {
	t.Helper()
	c := &runner.Controller{LogWriter: io.Discard}
	result, err := c.RunPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("RunPlan() error = %v", err)
	}
	return result
}

func TestController_RunPlan_AllCompleted(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(root,
		commandExec("writer", reportingCommand, map[string]interface{}{
			"report-file": "results.csv",
		}),
		commandExec("quiet", "true", nil),
	)

	result := runPlan(t, plan)

	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", result.ExitCode)
	}
	for _, in := range result.Instances {
		if in.State() != executor.StateCompleted {
			t.Errorf("instance %s state = %v, want completed", in.ID(), in.State())
		}
	}
	if result.Report.TotalSamples < 3 {
		t.Errorf("TotalSamples = %d, want at least the 3 reported samples",
			result.Report.TotalSamples)
	}
	if !result.Document.Success {
		t.Error("Document.Success = false, want true")
	}
	if len(result.Document.Executors) != 2 {
		t.Errorf("Document has %d executors, want 2", len(result.Document.Executors))
	}

	for _, name := range []string{"report.json", "report.html", "samples.jsonl", "stampede.log"} {
		path := filepath.Join(result.RunDir, name)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing run artifact %s: %v", name, err)
			continue
		}
		if name != "samples.jsonl" && info.Size() == 0 {
			t.Errorf("run artifact %s is empty", name)
		}
	}
}

func TestController_RunPlan_FailureSetsExitCode(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(root, commandExec("doomed", "exit 3", nil))

	result := runPlan(t, plan)

	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
	if st := result.Instances[0].State(); st != executor.StateFailed {
		t.Errorf("state = %v, want failed", st)
	}
	if result.Document.Success {
		t.Error("Document.Success = true, want false")
	}
	entry := result.Document.Executors[0]
	if entry.Error == "" {
		t.Error("executor entry has no error message")
	}
	if entry.ExitCode != 3 {
		t.Errorf("executor entry exit code = %d, want 3", entry.ExitCode)
	}

	// The report is still written for failed runs.
	if _, err := os.Stat(filepath.Join(result.RunDir, "report.json")); err != nil {
		t.Errorf("report.json missing after failed run: %v", err)
	}
}

func TestController_RunPlan_BestEffort(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(root,
		commandExec("good", "true", nil),
		commandExec("bad", "exit 1", nil),
	)
	plan.Settings.BestEffort = true

	result := runPlan(t, plan)

	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 with one completed executor", result.ExitCode)
	}
}

func TestController_RunPlan_EmptyPlan(t *testing.T) {
	root := t.TempDir()
	result := runPlan(t, testPlan(root))

	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 for an empty plan", result.ExitCode)
	}
	if result.Report.TotalSamples != 0 {
		t.Errorf("TotalSamples = %d, want 0", result.Report.TotalSamples)
	}
}

func TestController_RunPlan_UnknownExecutorCreatesNothing(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(root, &config.ExecutionConfig{Executor: "locust"})

	c := &runner.Controller{LogWriter: io.Discard}
	_, err := c.RunPlan(context.Background(), plan)
	if err == nil {
		t.Fatal("RunPlan() with unknown executor type succeeded")
	}
	if !strings.Contains(err.Error(), "locust") {
		t.Errorf("error %q does not name the unknown type", err)
	}

	entries, readErr := os.ReadDir(root)
	if readErr != nil {
		t.Fatalf("ReadDir() error = %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("configuration error still created %d artifact entries", len(entries))
	}
}

func TestController_RunPlan_BadExecutionTimeout(t *testing.T) {
	root := t.TempDir()
	exec := commandExec("slow", "true", nil)
	exec.Timeout = "bogus"
	plan := testPlan(root, exec)

	c := &runner.Controller{LogWriter: io.Discard}
	_, err := c.RunPlan(context.Background(), plan)

	var vErr *config.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("RunPlan() error = %v, want *config.ValidationError", err)
	}
}

func TestController_RunPlan_GlobalTimeout(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(root, commandExec("sleeper", "sleep 30", nil))
	plan.Settings.Timeout = "100ms"

	start := time.Now()
	result := runPlan(t, plan)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("run took %v, timeout did not bite", elapsed)
	}
	if st := result.Instances[0].State(); st != executor.StateTimedOut {
		t.Errorf("state = %v, want timed-out", st)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestController_RunPlan_LogFileOverride(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "custom.log")
	plan := testPlan(root, commandExec("short", "true", nil))

	c := &runner.Controller{LogWriter: io.Discard, LogFile: logPath}
	result, err := c.RunPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("RunPlan() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log override: %v", err)
	}
	if !strings.Contains(string(data), "run finished") {
		t.Error("override log missing run lifecycle entries")
	}

	// The default consolidated log is not created when overridden.
	if _, err := os.Stat(filepath.Join(result.RunDir, "stampede.log")); !os.IsNotExist(err) {
		t.Errorf("default stampede.log exists despite override (stat err = %v)", err)
	}
}

func TestController_RunPlan_DocumentTimeline(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(root, commandExec("writer", reportingCommand, map[string]interface{}{
		"report-file": "results.csv",
	}))

	result := runPlan(t, plan)

	entry := result.Document.Executors[0]
	if entry.StartedAt.IsZero() {
		t.Error("executor entry has no start time")
	}
	if entry.EndedAt.IsZero() {
		t.Error("executor entry has no end time")
	}
	if entry.EndedAt.Before(entry.StartedAt) {
		t.Errorf("EndedAt %v before StartedAt %v", entry.EndedAt, entry.StartedAt)
	}
	if entry.SampleCount != 3 {
		t.Errorf("SampleCount = %d, want 3 (two latencies and one error)", entry.SampleCount)
	}
}
