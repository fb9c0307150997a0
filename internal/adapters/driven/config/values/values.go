// Package values converts loosely typed configuration values.
// Values arrive as native types from TOML and YAML decoders and as strings
// from environment variables and the settings command.
package values

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// String converts v to a string. Non-string scalars are formatted.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case int, int64, float64, bool:
		return fmt.Sprint(x)
	default:
		return ""
	}
}

// Int converts v to an int. Returns 0 when v is not numeric.
func Int(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Float converts v to a float64. Returns 0 when v is not numeric.
func Float(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool converts v to a bool. Returns false when v is not a boolean.
func Bool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		return false
	}
}

// Duration parses a duration string such as "30s" or "30m".
// Plain integers are read as seconds. Returns 0 when s is empty or invalid.
func Duration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
