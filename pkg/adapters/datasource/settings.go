package datasource

import "fmt"

// Settings is the generic adapter configuration handed to an AdapterFactory.
// Numbers may arrive as int (YAML, Go callers) or float64 (JSON).
type Settings map[string]any

// Required returns a non-empty string value or an error naming the key.
func (s Settings) Required(key string) (string, error) {
	if v, ok := s[key].(string); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s is required", key)
}

// String returns the value for key, or def when it is absent or empty.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns a positive integer value for key, or def.
func (s Settings) Int(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}

// Bool returns the value for key, or def when it is not a bool.
func (s Settings) Bool(key string, def bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return def
}
