package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadPlan loads, layers, overrides, validates and decodes a test plan.
//
// The merge precedence is, lowest to highest:
//  1. settings-dir layer files (lexical order, later file wins)
//  2. the plan document itself
//  3. -o key=value overrides
//
// Structural problems (schema violations, unknown executor blocks of the
// wrong shape) reject the whole plan before anything is launched.
func LoadPlan(planPath, settingsDir string, overrides []string) (*TestPlan, error) {
	doc := make(map[string]interface{})

	if settingsDir != "" {
		layered, err := LoadSettingsLayers(settingsDir)
		if err != nil {
			return nil, err
		}
		doc = DeepMerge(doc, layered)
	}

	planDoc, err := LoadDocument(planPath)
	if err != nil {
		return nil, err
	}
	doc = DeepMerge(doc, planDoc)

	for _, override := range overrides {
		if err := ApplyOverride(doc, override); err != nil {
			return nil, err
		}
	}

	return DecodePlan(doc)
}

// LoadDocument reads a YAML document into a generic map.
func LoadDocument(path string) (map[string]interface{}, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &ValidationError{Field: "plan", Message: fmt.Sprintf("file not found: %s", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading plan file: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Field: "plan", Message: fmt.Sprintf("malformed YAML in %s: %v", path, err)}
	}
	if doc == nil {
		doc = make(map[string]interface{})
	}

	return doc, nil
}

// LoadSettingsLayers merges every *.yml / *.yaml file in dir in lexical
// order, later files taking precedence. A missing directory is not an
// error; it simply contributes nothing.
func LoadSettingsLayers(dir string) (map[string]interface{}, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading settings dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	merged := make(map[string]interface{})
	for _, name := range names {
		layer, err := LoadDocument(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, layer)
	}

	return merged, nil
}

// DeepMerge merges override into base, returning a new map. Nested maps
// merge recursively; any other value in override replaces the base value.
func DeepMerge(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			if overrideMap, ok := v.(map[string]interface{}); ok {
				result[k] = DeepMerge(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// ApplyOverride applies a single "dotted.path=value" override to the
// document, creating intermediate maps as needed. Numeric segments index
// into lists (e.g. "executions.0.timeout=1m").
func ApplyOverride(doc map[string]interface{}, override string) error {
	key, rawValue, found := strings.Cut(override, "=")
	if !found || key == "" {
		return &ValidationError{Field: "override",
			Message: fmt.Sprintf("override %q is not in key=value form", override)}
	}

	segments := strings.Split(key, ".")
	value := coerceScalar(rawValue)

	var current interface{} = doc
	for i, segment := range segments {
		last := i == len(segments)-1

		switch node := current.(type) {
		case map[string]interface{}:
			if last {
				node[segment] = value
				return nil
			}
			next, ok := node[segment]
			if !ok {
				next = make(map[string]interface{})
				node[segment] = next
			}
			current = next

		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return &ValidationError{Field: key,
					Message: fmt.Sprintf("list index %q out of range", segment)}
			}
			if last {
				node[idx] = value
				return nil
			}
			current = node[idx]

		default:
			return &ValidationError{Field: key,
				Message: fmt.Sprintf("cannot descend into scalar at %q", segment)}
		}
	}

	return nil
}

// coerceScalar interprets an override value as bool, int or float when it
// parses as one, otherwise keeps it as a string.
func coerceScalar(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// DecodePlan validates a raw document against the plan schema and decodes
// it into a TestPlan with defaults applied.
func DecodePlan(doc map[string]interface{}) (*TestPlan, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	// Round-trip through YAML so inline tool config lands in Config maps.
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("error re-encoding plan: %w", err)
	}

	var plan TestPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, &ValidationError{Field: "plan", Message: err.Error()}
	}

	// Validate before defaulting: the duplicate-name check must only see
	// names the plan set explicitly, since two unnamed executions of the
	// same type are legal (their artifact directories get deduplicated).
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	ApplyDefaults(&plan)

	return &plan, nil
}
