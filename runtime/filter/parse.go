package filter

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Parse builds a leaf filter from command line words. op is a comparison
// operator, "in" with a comma separated list, "contains", "matches", a
// range mode with "from..to", or "notnull".
func Parse(role, op, value string) (*Filter, error) {
	switch strings.ToLower(op) {
	case "in":
		values := strings.Split(value, ",")
		ints := make([]int, 0, len(values))
		for _, v := range values {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				return NewStringEnum(role, trimAll(values)...), nil
			}
			ints = append(ints, n)
		}
		return NewIntEnum(role, ints...), nil
	case "contains":
		return NewSubstring(role, value), nil
	case "matches", "~":
		return NewRegexp(role, value)
	case "notnull":
		return NewNullObject(role), nil
	}

	if mode, err := ParseRangeMode(op); err == nil {
		lo, hi, found := strings.Cut(value, "..")
		if !found {
			return nil, fmt.Errorf("range %q: want from..to", value)
		}
		from, err := cast.ToFloat64E(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("range from: %w", err)
		}
		to, err := cast.ToFloat64E(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("range to: %w", err)
		}
		return NewRange(role, from, to, mode), nil
	}

	cmp, err := ParseComparison(op)
	if err != nil {
		return nil, err
	}
	return NewComparison(role, cmp, ParseValue(value)), nil
}

// ParseValue converts a command line word to an int, float, bool or string.
func ParseValue(s string) any {
	if n, err := cast.ToIntE(s); err == nil && !strings.ContainsAny(s, ".eE") {
		return n
	}
	if x, err := cast.ToFloat64E(s); err == nil {
		return x
	}
	switch s {
	case "true", "false":
		return s == "true"
	}
	return strings.Trim(s, `"'`)
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
