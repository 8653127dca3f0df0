package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order. Values without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	// warehouse export format, e.g. 14-MAR-25 01.02.03.000000 PM
	"02-Jan-06 03.04.05.999999999 PM",
	"02-Jan-2006 03.04.05.999999999 PM",
}

// ParseTime parses a timestamp cell. It reports false for empty or
// unrecognized values instead of failing.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseBool parses flag cells such as 1/0, true/false, t/f, y/n.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "y", "yes":
		return true, true
	case "0", "false", "f", "n", "no":
		return false, true
	default:
		return false, false
	}
}

// Match reports whether row satisfies every filter. Empty cells behave like
// SQL NULL: only NotNull inspects them, and every other operator rejects them.
func Match(row Row, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(row[f.Column], f) {
			return false
		}
	}
	return true
}

func matchOne(cell string, f Filter) bool {
	if cell == "" {
		return false
	}
	switch f.Op {
	case OpNotNull:
		return true
	case OpEq:
		c, ok := compare(cell, f.Values[0])
		return ok && c == 0
	case OpGte:
		c, ok := compare(cell, f.Values[0])
		return ok && c >= 0
	case OpIn:
		for _, v := range f.Values {
			if c, ok := compare(cell, v); ok && c == 0 {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, v := range f.Values {
			if c, ok := compare(cell, v); ok && c == 0 {
				return false
			}
		}
		return true
	case OpLike:
		return likeRegexp(fmt.Sprint(f.Values[0])).MatchString(cell)
	default:
		return false
	}
}

// compare orders cell against v using v's type. ok is false when the cell
// cannot be interpreted as that type.
func compare(cell string, v any) (int, bool) {
	switch x := v.(type) {
	case time.Time:
		t, ok := ParseTime(cell)
		if !ok {
			return 0, false
		}
		return t.Compare(x), true
	case bool:
		b, ok := ParseBool(cell)
		if !ok {
			return 0, false
		}
		switch {
		case b == x:
			return 0, true
		case x:
			return -1, true
		default:
			return 1, true
		}
	case int:
		return compareFloat(cell, float64(x))
	case int64:
		return compareFloat(cell, float64(x))
	case float64:
		return compareFloat(cell, x)
	default:
		s := fmt.Sprint(v)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			if c, ok := compareFloat(cell, n); ok {
				return c, true
			}
		}
		return strings.Compare(cell, s), true
	}
}

func compareFloat(cell string, n float64) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, false
	}
	switch {
	case f < n:
		return -1, true
	case f > n:
		return 1, true
	default:
		return 0, true
	}
}

// likeRegexp translates a SQL LIKE pattern with backslash escapes.
func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile("(?s)" + b.String())
}
