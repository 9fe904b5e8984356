package session

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://session-relay.local/schemas/dataset_v1.json"

//go:embed schemas/dataset_v1.json
var datasetSchema []byte

// Validator checks dataset payloads against the dataset JSON schema
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded dataset schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(datasetSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Validate checks a raw payload and returns every violation found.
// source names the payload origin in the returned errors.
func (v *Validator) Validate(source string, body []byte) []ValidationError {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return []ValidationError{{
			Source:  source,
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}}
	}

	if err := v.schema.Validate(inst); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return extractSchemaErrors(source, validationErr)
		}
		return []ValidationError{{Source: source, Message: err.Error()}}
	}

	return nil
}

// Decode validates body and decodes it into records. A JSON null body
// decodes to an empty dataset.
func (v *Validator) Decode(source string, body []byte) ([]Record, error) {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, nil
	}

	if errs := v.Validate(source, body); len(errs) > 0 {
		return nil, errs[0]
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, ValidationError{Source: source, Message: err.Error()}
	}

	return records, nil
}

// extractSchemaErrors flattens a schema validation error tree. Only leaf
// causes are reported since they carry the actionable messages.
func extractSchemaErrors(source string, err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		path := strings.Join(err.InstanceLocation, ".")
		if path == "" {
			path = "(root)"
		}
		return []ValidationError{{
			Source:  source,
			Path:    path,
			Message: err.Error(),
		}}
	}

	var errs []ValidationError
	for _, cause := range err.Causes {
		errs = append(errs, extractSchemaErrors(source, cause)...)
	}
	return errs
}
