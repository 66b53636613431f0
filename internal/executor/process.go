package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/stampede/internal/artifact"
	"github.com/wesleyorama2/stampede/internal/metrics"
)

// Invocation describes how to launch one external tool.
type Invocation struct {
	// Argv is the command line; Argv[0] is resolved via PATH
	Argv []string

	// Env is appended to the orchestrator's environment (KEY=VALUE)
	Env []string

	// Reader extracts samples from the tool's report output (may be nil)
	Reader SampleReader
}

// CommandFunc builds the invocation for a spec. It receives the
// executor's artifact directory and the path its stdout will be captured
// to, so report-file readers can be wired up front.
type CommandFunc func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error)

// ProcessDriver runs one external CLI tool as a subprocess.
//
// stdout and stderr are captured to artifact files. Samples come from the
// invocation's reader when the tool produces an incremental report; when
// it does not, the driver synthesizes zero-valued throughput samples from
// output-file growth so supervision can still observe liveness.
type ProcessDriver struct {
	spec   *Spec
	binary string // pre-flight PATH check; "" checks Argv[0] instead
	build  CommandFunc

	mu         sync.Mutex
	started    bool
	exited     bool
	exitCode   int
	finalState State
	cmd        *exec.Cmd
	stdout     *os.File
	stderr     *os.File
	stdoutPath string
	stderrPath string
	reader     SampleReader
	readErr    error
	waitCh     chan error
	dir        *artifact.Dir
	outSize    int64
}

// NewProcessDriver creates a driver for spec. binary names the tool
// executable checked before launch; build produces the full invocation.
func NewProcessDriver(spec *Spec, binary string, build CommandFunc) *ProcessDriver {
	return &ProcessDriver{
		spec:     spec,
		binary:   binary,
		build:    build,
		exitCode: -1,
	}
}

// Start launches the tool. A second call returns an error.
func (d *ProcessDriver) Start(ctx context.Context, dir *artifact.Dir) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return &RuntimeError{Executor: d.spec.Name, Op: "start", Err: errAlreadyStarted}
	}
	if err := ctx.Err(); err != nil {
		return &CancellationError{Executor: d.spec.Name}
	}

	// Capture files go through the store's artifact factory so anything
	// already in the directory under these names is left intact.
	base := d.spec.Type
	stdout, err := dir.CreateArtifact(base, ".out")
	if err != nil {
		return err
	}
	stderr, err := dir.CreateArtifact(base, ".err")
	if err != nil {
		stdout.Close()
		return err
	}
	d.stdoutPath = stdout.Name()
	d.stderrPath = stderr.Name()

	inv, err := d.build(d.spec, dir, d.stdoutPath)
	if err != nil {
		stdout.Close()
		stderr.Close()
		return err
	}
	if len(inv.Argv) == 0 {
		stdout.Close()
		stderr.Close()
		return &RuntimeError{Executor: d.spec.Name, Op: "start",
			Err: fmt.Errorf("empty command line")}
	}

	// Tool presence check before the subprocess launches.
	checkBinary := d.binary
	if checkBinary == "" {
		checkBinary = inv.Argv[0]
	}
	if _, err := exec.LookPath(checkBinary); err != nil {
		stdout.Close()
		stderr.Close()
		return &EnvironmentError{Executor: d.spec.Name,
			Reason: fmt.Sprintf("required tool %q not found in PATH", checkBinary)}
	}

	cmd := exec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = dir.Path()
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), inv.Env...)

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return &RuntimeError{Executor: d.spec.Name, Op: "start", Err: err}
	}

	d.cmd = cmd
	d.stdout = stdout
	d.stderr = stderr
	d.reader = inv.Reader
	d.dir = dir
	d.started = true
	d.waitCh = make(chan error, 1)

	go func() {
		d.waitCh <- cmd.Wait()
	}()

	return nil
}

// Poll reaps the process if it exited and drains new samples.
func (d *ProcessDriver) Poll() (State, []metrics.Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return StatePending, nil
	}

	d.reapLocked()

	var samples []metrics.Sample
	if d.reader != nil {
		read, err := d.reader.Read()
		if err != nil && d.readErr == nil {
			d.readErr = err
		}
		samples = read
	}

	if !d.exited {
		if len(samples) == 0 && d.grewLocked() {
			// No incremental report; synthesize a zero delta from the
			// last known totals so the heartbeat stays alive.
			samples = append(samples, metrics.Sample{
				Timestamp: time.Now(),
				Kind:      metrics.KindThroughput,
				Value:     0,
			})
		}
		return StateRunning, samples
	}

	return d.finalState, samples
}

// reapLocked checks, without blocking, whether the process has exited.
func (d *ProcessDriver) reapLocked() {
	if d.exited {
		return
	}
	select {
	case waitErr := <-d.waitCh:
		d.exited = true
		d.exitCode = exitCodeOf(d.cmd, waitErr)
		if d.exitCode == 0 {
			d.finalState = StateCompleted
		} else {
			d.finalState = StateFailed
		}
	default:
	}
}

// grewLocked reports whether captured output grew since the last check.
func (d *ProcessDriver) grewLocked() bool {
	var size int64
	for _, path := range []string{d.stdoutPath, d.stderrPath} {
		if info, err := os.Stat(path); err == nil {
			size += info.Size()
		}
	}
	grew := size > d.outSize
	d.outSize = size
	return grew
}

// Stop interrupts the process, escalating to a kill after the grace
// period. No-op when never started or already exited.
func (d *ProcessDriver) Stop(grace time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.exited {
		return nil
	}

	_ = d.cmd.Process.Signal(os.Interrupt)

	if grace > 0 {
		select {
		case waitErr := <-d.waitCh:
			d.exited = true
			d.exitCode = exitCodeOf(d.cmd, waitErr)
			d.finalState = StateFailed
			return nil
		case <-time.After(grace):
		}
	}

	if err := d.cmd.Process.Kill(); err != nil {
		return &RuntimeError{Executor: d.spec.Name, Op: "stop", Err: err}
	}
	waitErr := <-d.waitCh
	d.exited = true
	d.exitCode = exitCodeOf(d.cmd, waitErr)
	d.finalState = StateFailed
	return nil
}

// Harvest flushes captured output and collects diagnostics.
func (d *ProcessDriver) Harvest() (*Harvest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stdout != nil {
		d.stdout.Close()
		d.stdout = nil
	}
	if d.stderr != nil {
		d.stderr.Close()
		d.stderr = nil
	}

	harvest := &Harvest{ExitCode: d.exitCode}

	if d.dir != nil {
		if files, err := d.dir.List(); err == nil {
			harvest.Files = files
		}
	}

	if d.exitCode != 0 {
		if tail := readTail(d.stdoutPath); tail != "" {
			harvest.Diagnostics = append(harvest.Diagnostics,
				d.spec.Type+" STDOUT:\n"+tail)
		}
		if tail := readTail(d.stderrPath); tail != "" {
			harvest.Diagnostics = append(harvest.Diagnostics,
				d.spec.Type+" STDERR:\n"+tail)
		}
	}
	if d.readErr != nil {
		harvest.Diagnostics = append(harvest.Diagnostics,
			"report reader: "+d.readErr.Error())
	}

	return harvest, nil
}

// exitCodeOf extracts the process exit code from cmd.Wait's result.
func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// tailBytes bounds how much captured output ends up in diagnostics.
const tailBytes = 4096

// readTail returns up to the last tailBytes of a file, trimmed.
func readTail(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > tailBytes {
		data = data[len(data)-tailBytes:]
	}
	return strings.TrimSpace(string(data))
}
