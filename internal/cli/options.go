package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// JSONValue is a flag value holding JSON given either inline or as a path to
// a JSON file. Optional required top-level keys are checked on Set.
type JSONValue struct {
	validate []string
	value    any
	set      bool
}

// NewJSONValue returns a JSONValue requiring the given top-level keys when
// the payload is an object.
func NewJSONValue(requiredKeys ...string) *JSONValue {
	return &JSONValue{validate: requiredKeys}
}

func (v *JSONValue) String() string {
	if !v.set {
		return ""
	}
	raw, err := json.Marshal(v.value)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (v *JSONValue) Type() string {
	return "JSON"
}

func (v *JSONValue) Set(raw string) error {
	data := []byte(raw)
	if info, err := os.Stat(raw); err == nil && !info.IsDir() {
		data, err = os.ReadFile(raw)
		if err != nil {
			return err
		}
	}

	if err := json.Unmarshal(data, &v.value); err != nil {
		return errors.New("ERROR - Invalid JSON provided.")
	}

	if len(v.validate) > 0 {
		obj, ok := v.value.(map[string]any)
		if !ok {
			return errors.New("ERROR - Invalid JSON provided.")
		}
		for _, key := range v.validate {
			if _, ok := obj[key]; !ok {
				return fmt.Errorf("ERROR - %q not specified", key)
			}
		}
	}

	v.set = true
	return nil
}

// IsSet reports whether the flag was provided.
func (v *JSONValue) IsSet() bool {
	return v.set
}

// Object returns the payload as a JSON object.
func (v *JSONValue) Object() (map[string]any, error) {
	obj, ok := v.value.(map[string]any)
	if !ok {
		return nil, errors.New("ERROR - Invalid JSON provided.")
	}
	return obj, nil
}

// List returns the payload as a JSON array of objects.
func (v *JSONValue) List() ([]map[string]any, error) {
	raw, ok := v.value.([]any)
	if !ok {
		return nil, errors.New("ERROR - Invalid JSON provided.")
	}
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, errors.New("ERROR - Invalid JSON provided.")
		}
		out = append(out, obj)
	}
	return out, nil
}

// StringList returns the payload as a JSON array of strings.
func (v *JSONValue) StringList() ([]string, error) {
	raw, ok := v.value.([]any)
	if !ok {
		return nil, errors.New("ERROR - Invalid JSON provided.")
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		s, ok := entry.(string)
		if !ok {
			return nil, errors.New("ERROR - Invalid JSON provided.")
		}
		out = append(out, s)
	}
	return out, nil
}
