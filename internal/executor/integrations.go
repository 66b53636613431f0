package executor

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/wesleyorama2/stampede/internal/artifact"
	"github.com/wesleyorama2/stampede/internal/config"
)

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry with every built-in
// integration registered.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, ig := range builtinIntegrations() {
			if err := defaultRegistry.Register(ig); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}

func builtinIntegrations() []*Integration {
	return []*Integration{
		commandIntegration(),
		apacheBenchIntegration(),
		siegeIntegration(),
		molotovIntegration(),
		k6Integration(),
		vegetaIntegration(),
		seleniumRunnerIntegration(),
	}
}

// commandIntegration runs an arbitrary shell command. When the command
// writes a report file in the orchestrator's CSV or JSON-lines format,
// its samples are ingested; the report path is exported as
// STAMPEDE_REPORT.
func commandIntegration() *Integration {
	return &Integration{
		Tag:         "command",
		Mechanism:   "subprocess",
		Description: "Arbitrary shell command, optionally reporting samples via a report file",
		Fields: []Field{
			{Name: "cmd", Type: FieldString, Required: true, Description: "shell command line"},
			{Name: "report-file", Type: FieldString, Description: "report file the command writes"},
			{Name: "report-format", Type: FieldString, Description: "report format: csv (default) or jsonl"},
		},
		Build: func(spec *Spec) (Driver, error) {
			format := cfgString(spec, "report-format", "csv")
			if format != "csv" && format != "jsonl" {
				return nil, &ConfigError{Executor: spec.Name, Field: "report-format",
					Message: fmt.Sprintf("must be \"csv\" or \"jsonl\", got %q", format)}
			}

			return NewProcessDriver(spec, "", func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
				inv := &Invocation{
					Argv: []string{"/bin/sh", "-c", cfgString(spec, "cmd", "")},
				}
				if name := cfgString(spec, "report-file", ""); name != "" {
					reportPath := dir.Join(name)
					inv.Env = []string{"STAMPEDE_REPORT=" + reportPath}
					parse := LineParser(ParseCSVRecord)
					if format == "jsonl" {
						parse = ParseJSONRecord
					}
					inv.Reader = NewLineReader(reportPath, parse)
				}
				return inv, nil
			}), nil
		},
	}
}

func apacheBenchIntegration() *Integration {
	return &Integration{
		Tag:         "apachebench",
		Binary:      "ab",
		Mechanism:   "subprocess+report",
		Description: "ApacheBench HTTP hammer; per-request timings from gnuplot output",
		Fields: []Field{
			{Name: "url", Type: FieldString, Required: true, Description: "target URL"},
			{Name: "requests", Type: FieldInt, Description: "total request count (default 1000)"},
			{Name: "concurrency", Type: FieldInt, Description: "concurrent requests (default 10)"},
		},
		Build: func(spec *Spec) (Driver, error) {
			return NewProcessDriver(spec, "ab", func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
				reportPath := dir.Join("ab-results.tsv")
				return &Invocation{
					Argv: []string{
						"ab",
						"-n", strconv.Itoa(cfgInt(spec, "requests", 1000)),
						"-c", strconv.Itoa(cfgInt(spec, "concurrency", 10)),
						"-g", reportPath,
						cfgString(spec, "url", ""),
					},
					Reader: NewLineReader(reportPath, ParseABRecord),
				}, nil
			}), nil
		},
	}
}

func siegeIntegration() *Integration {
	return &Integration{
		Tag:         "siege",
		Binary:      "siege",
		Mechanism:   "subprocess+report",
		Description: "Siege HTTP load tool; per-request timings parsed from verbose output",
		Fields: []Field{
			{Name: "url", Type: FieldString, Required: true, Description: "target URL"},
			{Name: "concurrency", Type: FieldInt, Description: "concurrent users (default 10)"},
			{Name: "duration", Type: FieldDuration, Description: "test duration (default 30s)"},
		},
		Build: func(spec *Spec) (Driver, error) {
			return NewProcessDriver(spec, "siege", func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
				duration := cfgDuration(spec, "duration", 30*time.Second)
				return &Invocation{
					Argv: []string{
						"siege",
						"-c", strconv.Itoa(cfgInt(spec, "concurrency", 10)),
						"-t", fmt.Sprintf("%dS", int(duration.Seconds())),
						"-v",
						cfgString(spec, "url", ""),
					},
					Reader: NewLineReader(stdoutPath, ParseSiegeLine),
				}, nil
			}), nil
		},
	}
}

// molotovIntegration wraps the molotov load tool. The bundled reporting
// extension honors STAMPEDE_REPORT and appends one CSV record per
// operation.
func molotovIntegration() *Integration {
	return &Integration{
		Tag:         "molotov",
		Binary:      "molotov",
		Mechanism:   "subprocess+report",
		Description: "Molotov scenario-based load tool (Python)",
		Fields: []Field{
			{Name: "script", Type: FieldString, Required: true, Description: "molotov scenario script"},
			{Name: "workers", Type: FieldInt, Description: "worker count (default 10)"},
			{Name: "duration", Type: FieldDuration, Description: "test duration (default 1m)"},
		},
		Build: func(spec *Spec) (Driver, error) {
			return NewProcessDriver(spec, "molotov", func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
				script, err := absolutize(cfgString(spec, "script", ""))
				if err != nil {
					return nil, err
				}
				reportPath := dir.Join("molotov-report.csv")
				duration := cfgDuration(spec, "duration", time.Minute)
				return &Invocation{
					Argv: []string{
						"molotov",
						"--workers", strconv.Itoa(cfgInt(spec, "workers", 10)),
						"--duration", strconv.Itoa(int(duration.Seconds())),
						script,
					},
					Env:    []string{"STAMPEDE_REPORT=" + reportPath},
					Reader: NewLineReader(reportPath, ParseCSVRecord),
				}, nil
			}), nil
		},
	}
}

func k6Integration() *Integration {
	return &Integration{
		Tag:         "k6",
		Binary:      "k6",
		Mechanism:   "subprocess+report",
		Description: "Grafana k6 scripted load tool; samples from the JSON metric stream",
		Fields: []Field{
			{Name: "script", Type: FieldString, Required: true, Description: "k6 test script"},
			{Name: "vus", Type: FieldInt, Description: "virtual user count"},
			{Name: "duration", Type: FieldDuration, Description: "test duration"},
		},
		Build: func(spec *Spec) (Driver, error) {
			return NewProcessDriver(spec, "k6", func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
				script, err := absolutize(cfgString(spec, "script", ""))
				if err != nil {
					return nil, err
				}
				reportPath := dir.Join("k6-report.jsonl")
				argv := []string{"k6", "run", "--quiet", "--out", "json=" + reportPath}
				if vus := cfgInt(spec, "vus", 0); vus > 0 {
					argv = append(argv, "--vus", strconv.Itoa(vus))
				}
				if d := cfgDuration(spec, "duration", 0); d > 0 {
					argv = append(argv, "--duration", d.String())
				}
				argv = append(argv, script)
				return &Invocation{
					Argv:   argv,
					Reader: NewLineReader(reportPath, ParseK6Point),
				}, nil
			}), nil
		},
	}
}

func vegetaIntegration() *Integration {
	return &Integration{
		Tag:         "vegeta",
		Binary:      "vegeta",
		Mechanism:   "subprocess+report",
		Description: "Vegeta constant-rate HTTP attacker; samples from encoded JSON results",
		Fields: []Field{
			{Name: "targets", Type: FieldString, Required: true, Description: "vegeta targets file"},
			{Name: "rate", Type: FieldInt, Description: "requests per second (default 50)"},
			{Name: "duration", Type: FieldDuration, Description: "attack duration (default 30s)"},
		},
		Build: func(spec *Spec) (Driver, error) {
			return NewProcessDriver(spec, "vegeta", func(spec *Spec, dir *artifact.Dir, stdoutPath string) (*Invocation, error) {
				targets, err := absolutize(cfgString(spec, "targets", ""))
				if err != nil {
					return nil, err
				}
				reportPath := dir.Join("vegeta-report.jsonl")
				duration := cfgDuration(spec, "duration", 30*time.Second)
				pipeline := fmt.Sprintf(
					"vegeta attack -targets=%s -rate=%d -duration=%s | vegeta encode > %s",
					targets, cfgInt(spec, "rate", 50), duration, reportPath)
				return &Invocation{
					Argv:   []string{"/bin/sh", "-c", pipeline},
					Reader: NewLineReader(reportPath, ParseVegetaResult),
				}, nil
			}), nil
		},
	}
}

func seleniumRunnerIntegration() *Integration {
	return &Integration{
		Tag:         "selenium-runner",
		Binary:      "selenium-runner",
		Mechanism:   "browser-harness",
		Description: "Browser-automation suite driven through the selenium-runner harness",
		Fields: []Field{
			{Name: "suite", Type: FieldString, Required: true, Description: "suite script or directory"},
			{Name: "browser", Type: FieldString, Description: "browser name (default chrome)"},
			{Name: "headless", Type: FieldBool, Description: "run headless (default true)"},
		},
		Build: func(spec *Spec) (Driver, error) {
			return NewBrowserDriver(spec, "selenium-runner", "selenium-results.jsonl",
				func(spec *Spec, dir *artifact.Dir, resultsPath string) (*Invocation, error) {
					suite, err := absolutize(cfgString(spec, "suite", ""))
					if err != nil {
						return nil, err
					}
					argv := []string{
						"selenium-runner",
						"--suite", suite,
						"--browser", cfgString(spec, "browser", "chrome"),
						"--results", resultsPath,
					}
					if cfgBool(spec, "headless", true) {
						argv = append(argv, "--headless")
					}
					return &Invocation{Argv: argv}, nil
				}), nil
		},
	}
}

// absolutize resolves a plan-relative path against the orchestrator's
// working directory, since subprocesses run inside their artifact dir.
func absolutize(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}

// Config accessors. Types were already checked by the registry schema;
// these only normalize YAML's int/int64/float64 variance.

func cfgString(spec *Spec, key, def string) string {
	if v, ok := spec.Config[key].(string); ok {
		return v
	}
	return def
}

func cfgInt(spec *Spec, key string, def int) int {
	switch v := spec.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func cfgBool(spec *Spec, key string, def bool) bool {
	if v, ok := spec.Config[key].(bool); ok {
		return v
	}
	return def
}

func cfgDuration(spec *Spec, key string, def time.Duration) time.Duration {
	switch v := spec.Config[key].(type) {
	case string:
		if d, err := config.ParseDurationString(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}
