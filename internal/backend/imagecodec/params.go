package imagecodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// paramAs returns params[key] passed through convert, or fallback when the key is
// absent or convert rejects its value.
func paramAs[T any](params map[string]any, key string, fallback T, convert func(any) (T, bool)) T {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	if value, ok := convert(raw); ok {
		return value
	}
	return fallback
}

func stringParam(params map[string]any, key, fallback string) string {
	return paramAs(params, key, fallback, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

// intParam accepts the integer types YAML and JSON decoding produce. Fractional numbers
// are rejected.
func intParam(params map[string]any, key string, fallback int) int {
	return paramAs(params, key, fallback, func(v any) (int, bool) {
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case uint64:
			return int(n), n <= math.MaxInt
		case float64:
			return int(n), n == math.Trunc(n)
		}
		return 0, false
	})
}

// boolParam accepts booleans and anything strconv.ParseBool understands.
func boolParam(params map[string]any, key string, fallback bool) bool {
	return paramAs(params, key, fallback, func(v any) (bool, bool) {
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			return parsed, err == nil
		}
		return false, false
	})
}

// requireParams reports every key of names that params lacks.
func requireParams(params map[string]any, names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}
