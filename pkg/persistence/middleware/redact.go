package middleware

import (
	"regexp"
)

// Mask replaces the value of masked keys.
const Mask = "***"

// Redactor produces display-safe copies of records.
// Keys matching a drop pattern are nulled out, keys matching a mask pattern are masked.
type Redactor struct {
	drop []*regexp.Regexp
	mask []*regexp.Regexp
}

// NewRedactor compiles the patterns. It panics on an invalid pattern.
func NewRedactor(drop, mask []string) *Redactor {
	return &Redactor{drop: compile(drop), mask: compile(mask)}
}

// Apply returns a redacted deep copy of m. m itself is never modified.
func (r *Redactor) Apply(m map[string]any) map[string]any {
	if r == nil {
		return deepCopyMap(m)
	}
	out := deepCopyMap(m)
	r.redactMap(out)
	return out
}

func (r *Redactor) redactMap(m map[string]any) {
	for k, v := range m {
		switch {
		case matches(r.drop, k):
			m[k] = nil
			continue
		case matches(r.mask, k):
			m[k] = Mask
			continue
		}
		r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) {
	switch val := v.(type) {
	case map[string]any:
		r.redactMap(val)
	case []any:
		for _, item := range val {
			r.redactValue(item)
		}
	}
}

// Helpers

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matches(patterns []*regexp.Regexp, key string) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
