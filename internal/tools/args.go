package tools

import "fmt"

// stringArg reads a string argument, falling back to def when absent or
// the wrong type.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intArg reads an integer argument. LLM-provided JSON numbers arrive as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// stringSliceArg reads a list-of-strings argument, tolerating a bare
// string as a single-element list.
func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// intSliceArg reads a list-of-integers argument, tolerating float64
// elements from JSON decoding.
func intSliceArg(args map[string]any, key string) []int {
	switch v := args[key].(type) {
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, int(n))
			case int:
				out = append(out, n)
			}
		}
		return out
	case []int:
		return v
	case float64:
		return []int{int(v)}
	}
	return nil
}
