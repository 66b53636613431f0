// Package metrics provides sample aggregation for orchestrated runs.
package metrics

import (
	"time"
)

// Kind identifies what a sample measures.
type Kind string

const (
	// KindLatency is a single operation latency in milliseconds.
	KindLatency Kind = "latency"

	// KindThroughput is a count of operations completed in an interval.
	KindThroughput Kind = "throughput"

	// KindError is a count of failed operations in an interval.
	KindError Kind = "error"
)

// Sample is one timestamped metric data point produced by an executor.
//
// ExecutorID is stamped by the aggregator at ingestion; drivers may leave
// it empty.
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	ExecutorID string    `json:"executor"`
	Kind       Kind      `json:"kind"`
	Value      float64   `json:"value"`
}

// LatencyStats contains latency distribution statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// Summary contains computed statistics for one executor (or the whole run).
type Summary struct {
	// Samples is the total number of samples ingested
	Samples int64 `json:"samples"`

	// Requests is the number of completed operations observed
	Requests int64 `json:"requests"`

	// Errors is the number of failed operations observed
	Errors int64 `json:"errors"`

	// ErrorRate is Errors / Requests (0 when no requests)
	ErrorRate float64 `json:"errorRate"`

	// Throughput is Requests divided by the observed sample window
	Throughput float64 `json:"throughput"`

	// Latency is the latency distribution over all latency samples
	Latency LatencyStats `json:"latency"`

	// FirstSample and LastSample bound the observed sample window
	FirstSample time.Time `json:"firstSample,omitempty"`
	LastSample  time.Time `json:"lastSample,omitempty"`
}

// Report is the consolidated, immutable result of a run's aggregation.
type Report struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	// Executors maps executor id to its summary
	Executors map[string]*Summary `json:"executors"`

	// Overall aggregates every executor's samples
	Overall *Summary `json:"overall"`

	// Timeline is the merged, time-ordered sample stream
	Timeline []Sample `json:"timeline,omitempty"`

	// TotalSamples equals the sum of samples ingested from each executor
	TotalSamples int64 `json:"totalSamples"`
}
