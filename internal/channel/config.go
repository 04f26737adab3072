package channel

import (
	"fmt"
	"strings"
)

// ReadString returns the first non-empty value among keys, formatted as a string.
func ReadString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case fmt.Stringer:
			s = v.String()
		default:
			s = fmt.Sprint(v)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ReadStringSlice returns the first list value among keys. A single string
// value is treated as a comma separated list.
func ReadStringSlice(raw map[string]any, keys ...string) []string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		var out []string
		switch v := value.(type) {
		case []string:
			out = append(out, v...)
		case []any:
			for _, item := range v {
				if item == nil {
					continue
				}
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					out = append(out, s)
				}
			}
		case string:
			for _, item := range strings.Split(v, ",") {
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
