// Package enhance post-processes raw LLM JSON output into complete, bounded,
// cross-referenced analysis artifacts. The LLM's shape is only partially
// trusted: required fields are injected with defaults, scores are clamped,
// and the optimization output is repaired against the original agent
// configuration so it always covers every original agent.
package enhance

import (
	"errors"
	"fmt"
	"strconv"
)

// timestampPlaceholder is written into metadata blocks; the caller overwrites
// it with the real completion time before persisting.
const timestampPlaceholder = "1970-01-01T00:00:00Z"

// ErrUnexpectedShape is returned when the parsed LLM response is neither an
// object nor a single-element list of objects.
var ErrUnexpectedShape = errors.New("unexpected LLM response shape")

// unwrapObject accepts a JSON object directly, or a single-element list
// wrapping one (a shape some models produce), and rejects everything else.
func unwrapObject(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 1 {
			if obj, ok := v[0].(map[string]any); ok {
				return obj, nil
			}
			return nil, fmt.Errorf("%w: list element is not an object", ErrUnexpectedShape)
		}
		return nil, fmt.Errorf("%w: list of %d elements", ErrUnexpectedShape, len(v))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedShape, raw)
	}
}

// clampScore bounds a score to the closed range [0, 10].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// asFloat coerces the numeric representations that survive JSON decoding and
// repair into a float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ensureFields sets each missing key on obj to its default value.
func ensureFields(obj map[string]any, defaults map[string]any) {
	for key, value := range defaults {
		if _, ok := obj[key]; !ok {
			obj[key] = value
		}
	}
}
