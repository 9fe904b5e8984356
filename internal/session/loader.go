package session

import (
	"fmt"
	"os"
)

// LoadFile reads, validates and decodes a dataset file
func (v *Validator) LoadFile(path string) ([]Record, []ValidationError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []ValidationError{{
			Source:  path,
			Message: fmt.Sprintf("failed to read file: %v", err),
		}}
	}

	if errs := v.Validate(path, data); len(errs) > 0 {
		return nil, errs
	}

	records, err := v.Decode(path, data)
	if err != nil {
		return nil, []ValidationError{{Source: path, Message: err.Error()}}
	}

	return records, nil
}
