package executor_test

import (
	"strings"
	"testing"

	"github.com/wesleyorama2/stampede/internal/executor"
)

func TestDefaultRegistry_BuiltinsPresent(t *testing.T) {
	registry := executor.DefaultRegistry()

	for _, tag := range []string{
		"command", "apachebench", "siege", "molotov", "k6", "vegeta", "selenium-runner",
	} {
		if registry.Get(tag) == nil {
			t.Errorf("built-in integration %q not registered", tag)
		}
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := executor.NewRegistry()
	ig := &executor.Integration{Tag: "dup"}

	if err := registry.Register(ig); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(ig); err == nil {
		t.Fatal("second Register() expected error")
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := executor.DefaultRegistry()
	spec := &executor.Spec{Name: "load", Type: "locust", Config: map[string]interface{}{}}

	_, err := registry.Resolve(spec)
	if err == nil {
		t.Fatal("Resolve() expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "locust") {
		t.Errorf("error %q does not name the unknown type", err)
	}
	// The message lists the known tags so typos are self-explaining.
	if !strings.Contains(err.Error(), "k6") {
		t.Errorf("error %q does not list known types", err)
	}
}

func TestRegistry_RequiredFieldMissing(t *testing.T) {
	registry := executor.DefaultRegistry()
	spec := &executor.Spec{Name: "load", Type: "k6", Config: map[string]interface{}{}}

	err := registry.Validate(spec)
	if err == nil {
		t.Fatal("Validate() expected error for missing script")
	}

	cfgErr, ok := err.(*executor.ConfigError)
	if !ok {
		t.Fatalf("error type = %T, want *executor.ConfigError", err)
	}
	if cfgErr.Field != "script" {
		t.Errorf("Field = %q, want script", cfgErr.Field)
	}
}

func TestRegistry_FieldTypeMismatch(t *testing.T) {
	registry := executor.DefaultRegistry()

	tests := []struct {
		name   string
		config map[string]interface{}
		field  string
	}{
		{"int for string", map[string]interface{}{"script": 42}, "script"},
		{"string for int", map[string]interface{}{"script": "x.js", "vus": "many"}, "vus"},
		{"bad duration", map[string]interface{}{"script": "x.js", "duration": "whenever"}, "duration"},
	}

	for _, tt := range tests {
		spec := &executor.Spec{Name: "load", Type: "k6", Config: tt.config}
		err := registry.Validate(spec)
		if err == nil {
			t.Errorf("%s: Validate() expected error", tt.name)
			continue
		}
		cfgErr, ok := err.(*executor.ConfigError)
		if !ok || cfgErr.Field != tt.field {
			t.Errorf("%s: error = %v, want ConfigError on field %q", tt.name, err, tt.field)
		}
	}
}

func TestRegistry_ValidSpecsAccepted(t *testing.T) {
	registry := executor.DefaultRegistry()

	specs := []*executor.Spec{
		{Name: "c", Type: "command", Config: map[string]interface{}{"cmd": "true"}},
		{Name: "a", Type: "apachebench", Config: map[string]interface{}{
			"url": "http://localhost/", "requests": 100, "concurrency": 5}},
		{Name: "s", Type: "siege", Config: map[string]interface{}{
			"url": "http://localhost/", "duration": "45s"}},
		{Name: "m", Type: "molotov", Config: map[string]interface{}{
			"script": "scenario.py", "workers": 4, "duration": 120}},
		{Name: "k", Type: "k6", Config: map[string]interface{}{
			"script": "load.js", "vus": 10, "duration": "1m"}},
		{Name: "v", Type: "vegeta", Config: map[string]interface{}{
			"targets": "targets.txt", "rate": 25}},
		{Name: "b", Type: "selenium-runner", Config: map[string]interface{}{
			"suite": "smoke", "headless": false}},
	}

	for _, spec := range specs {
		if err := registry.Validate(spec); err != nil {
			t.Errorf("Validate(%s) error = %v", spec.Type, err)
		}
		if _, err := registry.Resolve(spec); err != nil {
			t.Errorf("Resolve(%s) error = %v", spec.Type, err)
		}
	}
}

func TestRegistry_CommandReportFormat(t *testing.T) {
	registry := executor.DefaultRegistry()
	spec := &executor.Spec{Name: "c", Type: "command", Config: map[string]interface{}{
		"cmd": "true", "report-file": "out.dat", "report-format": "xml",
	}}

	if _, err := registry.Resolve(spec); err == nil {
		t.Fatal("Resolve() expected error for unsupported report format")
	}
}

func TestRegistry_TagsSorted(t *testing.T) {
	tags := executor.DefaultRegistry().Tags()
	for i := 1; i < len(tags); i++ {
		if tags[i-1] >= tags[i] {
			t.Fatalf("Tags() not sorted: %v", tags)
		}
	}
}
