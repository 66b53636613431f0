// Package config provides test plan parsing, validation and override handling.
package config

import (
	"fmt"
	"strings"
	"time"
)

// TestPlan is the root of a declarative test plan document.
//
// Example YAML:
//
//	name: all-executors
//	settings:
//	  artifacts-dir: ./artifacts
//	  policy: sequential
//	  timeout: 10m
//	executions:
//	  - executor: k6
//	    name: api-smoke
//	    script: ./smoke.js
//	    duration: 2m
type TestPlan struct {
	// Name of the plan (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Settings contains global run settings shared by all executions
	Settings GlobalSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Executions is the ordered list of executor specifications
	Executions []*ExecutionConfig `json:"executions" yaml:"executions"`
}

// GlobalSettings contains run-wide settings.
type GlobalSettings struct {
	// ArtifactsDir is the root directory for run artifacts
	ArtifactsDir string `json:"artifacts-dir,omitempty" yaml:"artifacts-dir,omitempty"`

	// Policy selects the execution policy: "sequential" or "parallel"
	Policy string `json:"policy,omitempty" yaml:"policy,omitempty"`

	// MaxConcurrency bounds concurrently running executors under the
	// parallel policy (0 means unbounded)
	MaxConcurrency int `json:"max-concurrency,omitempty" yaml:"max-concurrency,omitempty"`

	// Timeout is the overall run deadline (e.g. "10m")
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// PollInterval is the driver polling interval (e.g. "250ms")
	PollInterval string `json:"poll-interval,omitempty" yaml:"poll-interval,omitempty"`

	// GracePeriod is how long Stop waits before escalating to a kill
	GracePeriod string `json:"grace-period,omitempty" yaml:"grace-period,omitempty"`

	// HeartbeatTimeout marks a running executor as failed when it produces
	// no samples and no process activity for this long (e.g. "2m")
	HeartbeatTimeout string `json:"heartbeat-timeout,omitempty" yaml:"heartbeat-timeout,omitempty"`

	// BestEffort makes the run exit zero if at least one executor completed
	BestEffort bool `json:"best-effort,omitempty" yaml:"best-effort,omitempty"`

	// LogFile overrides the consolidated run log path
	LogFile string `json:"log-file,omitempty" yaml:"log-file,omitempty"`
}

// ExecutionConfig is one executor specification from the plan.
//
// The Executor field selects a registered integration; every other key in
// the block is tool configuration and is validated against that
// integration's schema by the registry.
type ExecutionConfig struct {
	// Executor is the integration type tag (e.g. "k6", "molotov")
	Executor string `json:"executor" yaml:"executor"`

	// Name identifies this execution in reports (defaults to the type tag)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Timeout is the per-executor deadline (e.g. "5m")
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Config holds the tool-specific configuration keys
	Config map[string]interface{} `json:"-" yaml:",inline"`
}

// Policy values accepted by GlobalSettings.Policy.
const (
	PolicySequential = "sequential"
	PolicyParallel   = "parallel"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultArtifactsDir     = "artifacts"
	DefaultPolicy           = PolicySequential
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultGracePeriod      = 5 * time.Second
	DefaultHeartbeatTimeout = 2 * time.Minute
)

// ApplyDefaults fills unset global settings with defaults.
func ApplyDefaults(plan *TestPlan) {
	if plan.Settings.ArtifactsDir == "" {
		plan.Settings.ArtifactsDir = DefaultArtifactsDir
	}
	if plan.Settings.Policy == "" {
		plan.Settings.Policy = DefaultPolicy
	}
	if plan.Settings.PollInterval == "" {
		plan.Settings.PollInterval = DefaultPollInterval.String()
	}
	if plan.Settings.GracePeriod == "" {
		plan.Settings.GracePeriod = DefaultGracePeriod.String()
	}
	if plan.Settings.HeartbeatTimeout == "" {
		plan.Settings.HeartbeatTimeout = DefaultHeartbeatTimeout.String()
	}
	for _, exec := range plan.Executions {
		if exec.Name == "" {
			exec.Name = exec.Executor
		}
	}
}

// Validate performs semantic validation beyond the JSON schema.
func (p *TestPlan) Validate() error {
	if p.Settings.Policy != "" &&
		p.Settings.Policy != PolicySequential && p.Settings.Policy != PolicyParallel {
		return &ValidationError{Field: "settings.policy",
			Message: fmt.Sprintf("must be %q or %q", PolicySequential, PolicyParallel)}
	}
	if p.Settings.MaxConcurrency < 0 {
		return &ValidationError{Field: "settings.max-concurrency", Message: "cannot be negative"}
	}
	for _, field := range []struct{ name, value string }{
		{"settings.timeout", p.Settings.Timeout},
		{"settings.poll-interval", p.Settings.PollInterval},
		{"settings.grace-period", p.Settings.GracePeriod},
		{"settings.heartbeat-timeout", p.Settings.HeartbeatTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := ParseDurationString(field.value); err != nil {
			return &ValidationError{Field: field.name,
				Message: fmt.Sprintf("invalid duration %q: %v", field.value, err)}
		}
	}

	seen := make(map[string]bool)
	for i, exec := range p.Executions {
		if exec.Executor == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("executions[%d].executor", i),
				Message: "executor type is required",
			}
		}
		if exec.Timeout != "" {
			if _, err := ParseDurationString(exec.Timeout); err != nil {
				return &ValidationError{
					Field:   fmt.Sprintf("executions[%d].timeout", i),
					Message: fmt.Sprintf("invalid duration %q: %v", exec.Timeout, err),
				}
			}
		}
		if exec.Name != "" {
			if seen[exec.Name] {
				return &ValidationError{
					Field:   fmt.Sprintf("executions[%d].name", i),
					Message: fmt.Sprintf("duplicate execution name %q", exec.Name),
				}
			}
			seen[exec.Name] = true
		}
	}

	return nil
}

// ValidationError represents a plan configuration error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid configuration at '" + e.Field + "': " + e.Message
}

// ParseDurationString parses duration strings like "30s", "5m", "1h"
// as well as spelled-out forms like "2 minutes".
func ParseDurationString(duration string) (time.Duration, error) {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return 0, fmt.Errorf("duration cannot be empty")
	}

	// Try parsing as Go duration
	if d, err := time.ParseDuration(duration); err == nil {
		return d, nil
	}

	// Handle formats like "1 minute", "30 seconds"
	duration = strings.ToLower(duration)
	duration = strings.ReplaceAll(duration, " ", "")

	replacements := map[string]string{
		"seconds": "s",
		"second":  "s",
		"minutes": "m",
		"minute":  "m",
		"hours":   "h",
		"hour":    "h",
	}

	for word, abbrev := range replacements {
		duration = strings.ReplaceAll(duration, word, abbrev)
	}

	return time.ParseDuration(duration)
}
