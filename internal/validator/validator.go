// Package validator screens model-produced tool calls before they reach the
// registry.
package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"

	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

const (
	maxToolNameLength = 100
	maxArgumentsSize  = 100 * 1024 // 100KB
	maxNestDepth      = 10
)

var (
	namePattern   = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)
	dangerousKeys = []string{"__proto__", "constructor", "prototype"}
)

// ValidateToolCall checks the shape of a tool call independent of any schema.
// Every returned error wraps errors.ErrInvalidArgument.
func ValidateToolCall(toolName string, arguments map[string]any) error {
	if err := validateName(toolName, "tool", maxToolNameLength); err != nil {
		return fmt.Errorf("%w: %w", mcpErrors.ErrInvalidArgument, err)
	}
	if err := validateArguments(arguments); err != nil {
		return fmt.Errorf("%w: %w", mcpErrors.ErrInvalidArgument, err)
	}
	return nil
}

func validateName(name, field string, maxLength int) error {
	if name == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(name) > maxLength {
		return fmt.Errorf("%s exceeds maximum length (%d characters)", field, maxLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%s contains invalid characters", field)
	}
	return nil
}

func validateArguments(arguments map[string]any) error {
	if arguments == nil {
		return fmt.Errorf("arguments must be a JSON object")
	}

	if key, found := findDangerousKey(arguments); found {
		return fmt.Errorf("arguments contain forbidden key: %s", key)
	}

	encoded, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if len(encoded) > maxArgumentsSize {
		return fmt.Errorf("arguments exceed maximum size (%d bytes)", maxArgumentsSize)
	}

	if depth := getObjectDepth(arguments, 1); depth > maxNestDepth {
		return fmt.Errorf("arguments nesting exceeds maximum depth (%d)", maxNestDepth)
	}

	return nil
}

// findDangerousKey walks nested objects and arrays looking for keys that
// could pollute prototypes in JavaScript-based tool servers.
func findDangerousKey(obj any) (string, bool) {
	switch v := obj.(type) {
	case map[string]any:
		for key, val := range v {
			if slices.Contains(dangerousKeys, key) {
				return key, true
			}
			if k, found := findDangerousKey(val); found {
				return k, true
			}
		}
	case []any:
		for _, val := range v {
			if k, found := findDangerousKey(val); found {
				return k, true
			}
		}
	}
	return "", false
}

func getObjectDepth(obj any, currentDepth int) int {
	if currentDepth > maxNestDepth {
		return currentDepth
	}

	var children []any
	switch v := obj.(type) {
	case map[string]any:
		for _, val := range v {
			children = append(children, val)
		}
	case []any:
		children = v
	default:
		return currentDepth
	}

	deepest := currentDepth
	for _, child := range children {
		deepest = max(deepest, getObjectDepth(child, currentDepth+1))
	}
	return deepest
}
