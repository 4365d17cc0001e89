package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadData reads a YAML or JSON document of variables. An empty path yields
// an empty map.
func loadData(path string) (map[string]any, error) {
	vars := make(map[string]any)
	if path == "" {
		return vars, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if err := yaml.Unmarshal(raw, &vars); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	if vars == nil {
		vars = make(map[string]any)
	}
	return vars, nil
}

// parseAssignments turns name=value pairs into a map. Values are decoded as
// YAML scalars or flow collections, so "n=3" yields an int and "s=hi" a string.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected name=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[name] = v
	}
	return out, nil
}
