package executor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wesleyorama2/stampede/internal/config"
)

// FieldType identifies the expected type of a tool configuration field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldInt      FieldType = "integer"
	FieldNumber   FieldType = "number"
	FieldBool     FieldType = "boolean"
	FieldDuration FieldType = "duration"
)

// Field describes one tool configuration key for an integration.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// BuildFunc constructs a driver for a validated spec.
type BuildFunc func(spec *Spec) (Driver, error)

// Integration describes one registered executor type.
type Integration struct {
	// Tag is the type name used in test plans
	Tag string

	// Binary is the external tool executable (informational; drivers
	// perform the actual presence check at start)
	Binary string

	// Mechanism names the driver family ("subprocess",
	// "subprocess+report", "browser-harness")
	Mechanism string

	// Description is shown by the executors listing
	Description string

	// Fields is the configuration schema validated by Resolve
	Fields []Field

	// Build constructs the driver
	Build BuildFunc
}

// ConfigError is a descriptive per-executor configuration error,
// identifying the offending field.
type ConfigError struct {
	Executor string
	Field    string
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error for %s: field '%s': %s",
			e.Executor, e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Executor, e.Message)
}

// Registry maps executor type tags to driver constructors.
//
// The registry is populated once at startup; there is no dynamic
// re-registration during a run.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]*Integration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{integrations: make(map[string]*Integration)}
}

// Register adds an integration. Registering the same tag twice is an
// error.
func (r *Registry) Register(ig *Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.integrations[ig.Tag]; exists {
		return fmt.Errorf("executor type %q already registered", ig.Tag)
	}
	r.integrations[ig.Tag] = ig
	return nil
}

// Get returns the integration for a tag, or nil.
func (r *Registry) Get(tag string) *Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.integrations[tag]
}

// Tags returns all registered type tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.integrations))
	for tag := range r.integrations {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Resolve validates a spec's configuration against its integration's
// schema and constructs the driver. Validation is eager: a bad field is
// reported here, never deferred to launch time.
func (r *Registry) Resolve(spec *Spec) (Driver, error) {
	ig := r.Get(spec.Type)
	if ig == nil {
		return nil, &ConfigError{Executor: spec.Name, Field: "executor",
			Message: fmt.Sprintf("unknown executor type %q (known: %v)", spec.Type, r.Tags())}
	}

	if err := validateFields(spec, ig.Fields); err != nil {
		return nil, err
	}

	return ig.Build(spec)
}

// Validate checks the spec without constructing a driver.
func (r *Registry) Validate(spec *Spec) error {
	ig := r.Get(spec.Type)
	if ig == nil {
		return &ConfigError{Executor: spec.Name, Field: "executor",
			Message: fmt.Sprintf("unknown executor type %q (known: %v)", spec.Type, r.Tags())}
	}
	return validateFields(spec, ig.Fields)
}

func validateFields(spec *Spec, fields []Field) error {
	for _, field := range fields {
		value, present := spec.Config[field.Name]
		if !present {
			if field.Required {
				return &ConfigError{Executor: spec.Name, Field: field.Name,
					Message: "required field is missing"}
			}
			continue
		}
		if err := checkFieldType(value, field.Type); err != nil {
			return &ConfigError{Executor: spec.Name, Field: field.Name,
				Message: err.Error()}
		}
	}
	return nil
}

func checkFieldType(value interface{}, ft FieldType) error {
	switch ft {
	case FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
	case FieldInt:
		switch v := value.(type) {
		case int, int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("expected an integer, got %v", v)
			}
		default:
			return fmt.Errorf("expected an integer, got %T", value)
		}
	case FieldNumber:
		switch value.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("expected a number, got %T", value)
		}
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected a boolean, got %T", value)
		}
	case FieldDuration:
		s, ok := value.(string)
		if !ok {
			switch value.(type) {
			case int, int64, float64:
				return nil // bare numbers are seconds
			}
			return fmt.Errorf("expected a duration, got %T", value)
		}
		if _, err := config.ParseDurationString(s); err != nil {
			return fmt.Errorf("invalid duration %q: %v", s, err)
		}
	}
	return nil
}
