package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var errNoSender = errors.New("payload carries no sender identifier")

// at walks a dotted path through nested maps. Array values resolve to their
// last element, which matches how providers report e.g. photo size variants.
func at(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			if len(v) == 0 {
				return nil, false
			}
			m, ok := v[len(v)-1].(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, true
}

func has(doc map[string]any, path string) bool {
	v, ok := at(doc, path)
	return ok && v != nil
}

func stringAt(doc map[string]any, path string) string {
	v, ok := at(doc, path)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		return ""
	}
}

func firstString(doc map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := stringAt(doc, p); s != "" {
			return s
		}
	}
	return ""
}

func boolAt(doc map[string]any, path string) bool {
	v, ok := at(doc, path)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func intAt(doc map[string]any, path string) int64 {
	v, ok := at(doc, path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
