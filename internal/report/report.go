// Package report renders run results as JSON and HTML documents.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wesleyorama2/stampede/internal/metrics"
)

// ExecutorResult captures the outcome of a single executor in the run.
type ExecutorResult struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	ExitCode    int       `json:"exitCode"`
	SampleCount int64     `json:"sampleCount"`
	Artifacts   string    `json:"artifacts"`
	Files       []string  `json:"files,omitempty"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	EndedAt     time.Time `json:"endedAt,omitempty"`
}

// Document is the full run report written to disk at the end of every
// run, successful or not.
type Document struct {
	RunID     string           `json:"runId"`
	Plan      string           `json:"plan"`
	Policy    string           `json:"policy"`
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
	Duration  time.Duration    `json:"duration"`
	Executors []ExecutorResult `json:"executors"`
	Metrics   *metrics.Report  `json:"metrics"`
	Success   bool             `json:"success"`
	ExitCode  int              `json:"exitCode"`
}

// WriteJSON writes the report document as indented JSON.
func WriteJSON(doc *Document, path string) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}
