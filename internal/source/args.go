package source

import (
	"fmt"
	"sort"
	"time"
)

// Args accessors for the loosely typed YAML payload of a source record.

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func argStrings(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func argStringMap(args map[string]any, key string) map[string]string {
	out := make(map[string]string)
	switch v := args[key].(type) {
	case map[string]string:
		for k, e := range v {
			out[k] = e
		}
	case map[string]any:
		for k, e := range v {
			out[k] = fmt.Sprint(e)
		}
	}
	return out
}

func argDuration(args map[string]any, key string, def time.Duration) (time.Duration, error) {
	raw := argString(args, key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
