package validator

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

// ValidateAgainstSchema checks arguments against a tool's input schema and
// returns the arguments to dispatch. Numeric strings are converted to numbers
// where the schema declares a number or integer property. A nil schema
// accepts any arguments.
func ValidateAgainstSchema(inputSchema any, arguments map[string]any) (map[string]any, error) {
	schema, err := toSchema(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("unusable input schema: %w", err)
	}
	if schema == nil {
		return arguments, nil
	}

	coerced := coerceNumbers(schema, arguments)

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("unusable input schema: %w", err)
	}
	if err := resolved.Validate(coerced); err != nil {
		return nil, fmt.Errorf("%w: %w", mcpErrors.ErrInvalidArgument, err)
	}
	return coerced, nil
}

// toSchema accepts either a typed schema or its decoded JSON form, which is
// what a client sees after tools/list.
func toSchema(v any) (*jsonschema.Schema, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case *jsonschema.Schema:
		return s, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

func coerceNumbers(schema *jsonschema.Schema, arguments map[string]any) map[string]any {
	out := maps.Clone(arguments)
	for name, prop := range schema.Properties {
		s, ok := out[name].(string)
		if !ok || prop == nil {
			continue
		}
		wantsNumber := hasType(prop, "number")
		wantsInteger := hasType(prop, "integer")
		if !wantsNumber && !wantsInteger {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		if wantsInteger && !wantsNumber && n != math.Trunc(n) {
			continue
		}
		out[name] = n
	}
	return out
}

func hasType(s *jsonschema.Schema, t string) bool {
	return s.Type == t || slices.Contains(s.Types, t)
}
