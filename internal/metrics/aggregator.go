package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds, in microseconds (1us to 1 hour, 3 significant figures).
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// Aggregator merges per-executor sample streams into a single run report.
//
// Latency percentiles are computed incrementally with HDR histograms so
// memory stays bounded regardless of sample volume. Raw samples are kept
// for the merged timeline and, when a spool writer is configured, written
// out as JSON lines as they arrive.
//
// # Thread Safety
//
// Ingest and Finalize are safe for concurrent use; the scheduler's control
// loop is the single writer in practice, the lock guards against late
// polls racing finalization.
type Aggregator struct {
	mu sync.Mutex

	startTime time.Time

	executors map[string]*executorStats
	overall   *executorStats

	timeline     []Sample
	totalSamples int64

	// Optional raw-sample spool (JSON lines)
	spool *json.Encoder

	finalized bool
	report    *Report
}

// executorStats accumulates running statistics for one executor id.
type executorStats struct {
	hist     *hdrhistogram.Histogram
	samples  int64
	requests int64
	errors   int64
	first    time.Time
	last     time.Time
}

func newExecutorStats() *executorStats {
	return &executorStats{
		hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// NewAggregator creates an aggregator. The spool writer is optional; when
// non-nil every ingested sample is appended to it as one JSON line.
func NewAggregator(spool io.Writer) *Aggregator {
	agg := &Aggregator{
		startTime: time.Now(),
		executors: make(map[string]*executorStats),
		overall:   newExecutorStats(),
	}
	if spool != nil {
		agg.spool = json.NewEncoder(spool)
	}
	return agg
}

// Ingest merges a batch of samples from one executor into the aggregate.
//
// Returns an error if the aggregate has already been finalized; the
// report is append-only during the run and immutable afterwards.
func (a *Aggregator) Ingest(executorID string, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return fmt.Errorf("aggregate report for %s is finalized", executorID)
	}

	stats, ok := a.executors[executorID]
	if !ok {
		stats = newExecutorStats()
		a.executors[executorID] = stats
	}

	for _, sample := range samples {
		sample.ExecutorID = executorID
		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now()
		}

		stats.record(sample)
		a.overall.record(sample)

		a.timeline = append(a.timeline, sample)
		a.totalSamples++

		if a.spool != nil {
			// Spool failures must not disturb the run; the in-memory
			// timeline still has the sample.
			_ = a.spool.Encode(sample)
		}
	}

	return nil
}

func (s *executorStats) record(sample Sample) {
	s.samples++

	if s.first.IsZero() || sample.Timestamp.Before(s.first) {
		s.first = sample.Timestamp
	}
	if sample.Timestamp.After(s.last) {
		s.last = sample.Timestamp
	}

	switch sample.Kind {
	case KindLatency:
		micros := int64(sample.Value * 1000) // ms -> us
		if micros < histogramMin {
			micros = histogramMin
		}
		if micros > histogramMax {
			micros = histogramMax
		}
		s.hist.RecordValue(micros)
		s.requests++

	case KindThroughput:
		s.requests += int64(sample.Value)

	case KindError:
		s.errors += int64(sample.Value)
	}
}

// SampleCount returns the number of samples ingested so far.
func (a *Aggregator) SampleCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalSamples
}

// Finalize seals the aggregate and returns the immutable report.
//
// The first call builds the report; subsequent calls return the same one.
func (a *Aggregator) Finalize() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return a.report
	}
	a.finalized = true

	// Merge by timestamp; ties break by executor id, then insertion
	// order (the sort is stable over the append order).
	sort.SliceStable(a.timeline, func(i, j int) bool {
		if !a.timeline[i].Timestamp.Equal(a.timeline[j].Timestamp) {
			return a.timeline[i].Timestamp.Before(a.timeline[j].Timestamp)
		}
		return a.timeline[i].ExecutorID < a.timeline[j].ExecutorID
	})

	endTime := time.Now()
	report := &Report{
		StartTime:    a.startTime,
		EndTime:      endTime,
		Duration:     endTime.Sub(a.startTime),
		Executors:    make(map[string]*Summary, len(a.executors)),
		Overall:      a.overall.summarize(),
		Timeline:     a.timeline,
		TotalSamples: a.totalSamples,
	}

	for id, stats := range a.executors {
		report.Executors[id] = stats.summarize()
	}

	a.report = report
	return report
}

func (s *executorStats) summarize() *Summary {
	summary := &Summary{
		Samples:     s.samples,
		Requests:    s.requests,
		Errors:      s.errors,
		FirstSample: s.first,
		LastSample:  s.last,
	}

	if s.requests > 0 {
		summary.ErrorRate = float64(s.errors) / float64(s.requests)
	}

	if window := s.last.Sub(s.first); window > 0 {
		summary.Throughput = float64(s.requests) / window.Seconds()
	}

	if s.hist.TotalCount() > 0 {
		summary.Latency = LatencyStats{
			Min:    time.Duration(s.hist.Min()) * time.Microsecond,
			Max:    time.Duration(s.hist.Max()) * time.Microsecond,
			Mean:   time.Duration(s.hist.Mean()) * time.Microsecond,
			StdDev: time.Duration(s.hist.StdDev()) * time.Microsecond,
			P50:    time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond,
			P90:    time.Duration(s.hist.ValueAtQuantile(90)) * time.Microsecond,
			P95:    time.Duration(s.hist.ValueAtQuantile(95)) * time.Microsecond,
			P99:    time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond,
			Count:  s.hist.TotalCount(),
		}
	}

	return summary
}
