package config

import (
	"fmt"
	"time"
)

// Values decoded from JSON arrive as float64 and strings; these helpers accept
// both the decoded and the in-memory shapes.

func stringValue(data map[string]any, key string) (string, bool) {
	v, ok := data[key].(string)
	return v, ok
}

func boolValue(data map[string]any, key string) (bool, bool) {
	v, ok := data[key].(bool)
	return v, ok
}

func intValue(data map[string]any, key string) (int, bool, error) {
	switch v := data[key].(type) {
	case nil:
		return 0, false, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, false, fmt.Errorf("%s must be a whole number, got %v", key, v)
		}
		return int(v), true, nil
	default:
		return 0, false, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}

// durationValue accepts a Go duration string ("2.5s") or a number of seconds.
func durationValue(data map[string]any, key string) (time.Duration, bool, error) {
	switch v := data[key].(type) {
	case nil:
		return 0, false, nil
	case time.Duration:
		return v, true, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, true, nil
	case float64:
		return time.Duration(v * float64(time.Second)), true, nil
	case int:
		return time.Duration(v) * time.Second, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be a duration, got %T", key, v)
	}
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
