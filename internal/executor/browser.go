package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wesleyorama2/stampede/internal/artifact"
	"github.com/wesleyorama2/stampede/internal/metrics"
)

// BrowserDriver drives a browser-automation harness and polls its
// step/assertion results.
//
// The harness runs as a subprocess and appends one JSON record per
// executed step to a results file; the driver turns step durations into
// latency samples, failed assertions into error samples, and carries the
// failed step names into the harvest diagnostics.
type BrowserDriver struct {
	inner *ProcessDriver
	spec  *Spec

	mu          sync.Mutex
	totalSteps  int
	failedSteps []string
}

// NewBrowserDriver creates a driver around the given harness binary.
// The build function must produce the harness invocation; the driver
// installs its own results reader over resultsName within the
// executor's artifact directory.
func NewBrowserDriver(spec *Spec, binary, resultsName string, build func(spec *Spec, dir *artifact.Dir, resultsPath string) (*Invocation, error)) *BrowserDriver {
	d := &BrowserDriver{spec: spec}

	d.inner = NewProcessDriver(spec, binary, func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
		resultsPath := dir.Join(resultsName)
		inv, err := build(spec, dir, resultsPath)
		if err != nil {
			return nil, err
		}
		inv.Reader = NewLineReader(resultsPath, d.parseStep)
		return inv, nil
	})

	return d
}

// parseStep records step outcomes for diagnostics while producing the
// usual samples.
func (d *BrowserDriver) parseStep(line string) ([]metrics.Sample, bool) {
	samples, ok := ParseBrowserStep(line)
	if !ok {
		return nil, false
	}

	d.mu.Lock()
	d.totalSteps++
	for _, s := range samples {
		if s.Kind == metrics.KindError {
			if name := BrowserStepName(line); name != "" {
				d.failedSteps = append(d.failedSteps, name)
			}
			break
		}
	}
	d.mu.Unlock()

	return samples, true
}

// Start launches the harness subprocess.
func (d *BrowserDriver) Start(ctx context.Context, dir *artifact.Dir) error {
	return d.inner.Start(ctx, dir)
}

// Poll forwards to the harness subprocess.
func (d *BrowserDriver) Poll() (State, []metrics.Sample) {
	state, samples := d.inner.Poll()

	// A harness that ran steps but exited non-zero solely because some
	// assertions failed still produced a usable result set; keep Failed,
	// the step outcomes are already in the sample stream.
	return state, samples
}

// Stop forwards to the harness subprocess.
func (d *BrowserDriver) Stop(grace time.Duration) error {
	return d.inner.Stop(grace)
}

// Harvest adds step outcome diagnostics to the subprocess harvest.
func (d *BrowserDriver) Harvest() (*Harvest, error) {
	harvest, err := d.inner.Harvest()
	if err != nil {
		return harvest, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.totalSteps > 0 {
		harvest.Diagnostics = append(harvest.Diagnostics,
			fmt.Sprintf("browser steps: %d run, %d failed",
				d.totalSteps, len(d.failedSteps)))
	}
	for _, name := range d.failedSteps {
		harvest.Diagnostics = append(harvest.Diagnostics, "failed step: "+name)
	}

	return harvest, nil
}
