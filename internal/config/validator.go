package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// planSchema is the structural schema every plan document must satisfy
// before decoding. Tool-specific execution keys are intentionally open;
// the executor registry validates those per type.
const planSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "settings": {
      "type": "object",
      "properties": {
        "artifacts-dir": {"type": "string"},
        "policy": {"type": "string", "enum": ["sequential", "parallel"]},
        "max-concurrency": {"type": "integer", "minimum": 0},
        "timeout": {"type": "string"},
        "poll-interval": {"type": "string"},
        "grace-period": {"type": "string"},
        "heartbeat-timeout": {"type": "string"},
        "best-effort": {"type": "boolean"},
        "log-file": {"type": "string"}
      },
      "additionalProperties": false
    },
    "executions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "executor": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "timeout": {"type": "string"}
        },
        "required": ["executor"]
      }
    }
  },
  "required": ["executions"],
  "additionalProperties": false
}`

var compiledPlanSchema = mustCompileSchema(planSchema)

func mustCompileSchema(schemaStr string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("plan-schema.json", strings.NewReader(schemaStr)); err != nil {
		panic(fmt.Sprintf("invalid embedded plan schema: %v", err))
	}
	schema, err := compiler.Compile("plan-schema.json")
	if err != nil {
		panic(fmt.Sprintf("invalid embedded plan schema: %v", err))
	}
	return schema
}

// ValidateDocument checks a raw plan document against the plan schema.
//
// Returns a ValidationError naming the offending location on failure.
func ValidateDocument(doc map[string]interface{}) error {
	// Round-trip through JSON so YAML-decoded values carry
	// JSON-compatible types into the schema validator.
	data, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Field: "plan", Message: fmt.Sprintf("plan is not JSON-compatible: %v", err)}
	}

	var jsonDoc interface{}
	if err := json.Unmarshal(data, &jsonDoc); err != nil {
		return fmt.Errorf("error re-parsing plan: %w", err)
	}

	if err := compiledPlanSchema.Validate(jsonDoc); err != nil {
		var ve *jsonschema.ValidationError
		if ok := asValidationError(err, &ve); ok {
			leaf := leafCause(ve)
			field := strings.TrimPrefix(leaf.InstanceLocation, "/")
			field = strings.ReplaceAll(field, "/", ".")
			if field == "" {
				field = "plan"
			}
			return &ValidationError{Field: field, Message: leaf.Message}
		}
		return &ValidationError{Field: "plan", Message: err.Error()}
	}

	return nil
}

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	ve, ok := err.(*jsonschema.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

// leafCause descends to the most specific nested validation error.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
