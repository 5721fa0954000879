// Package coerce converts raw DOM attribute strings into typed values before
// they are written back onto a data model.
package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimal accepts the decimal literal forms understood by JavaScript's Number().
var decimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Attrs coerces every value in attrs. The input map is not modified.
func Attrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = Value(v)
	}
	return out
}

// Value applies the coercion policy to a single value: non-strings pass
// through, "NaN" and numeric strings become float64 (the empty string is
// exempt), "true"/"false" become bool and anything else stays a string.
func Value(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s == "" {
		return s
	}
	if s == "NaN" {
		return math.NaN()
	}
	if f, ok := Number(s); ok {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// Number parses s with JavaScript Number() semantics. Surrounding whitespace
// is ignored and a blank string is zero.
func Number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0, true
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			digits := s[2:]
			if strings.ContainsRune(digits, '_') {
				return 0, false
			}
			n, err := strconv.ParseUint(digits, base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}

	if !decimal.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range values still parse to ±Inf like Number().
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}
