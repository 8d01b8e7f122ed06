package protocol

import (
	"fmt"
	"strings"
)

// Filter is an equality filter in the "column=eq.value" form.
type Filter struct {
	Column string
	Value  string
}

func Eq(column, value string) Filter { return Filter{Column: column, Value: value} }

func (f Filter) IsZero() bool { return f.Column == "" }

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches reports whether the row field map satisfies the filter.
func (f Filter) Matches(fields map[string]string) bool {
	if f.IsZero() {
		return true
	}
	return fields[f.Column] == f.Value
}

func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok || !strings.HasPrefix(rest, "eq.") || col == "" {
		return Filter{}, fmt.Errorf("bad filter %q", s)
	}
	return Filter{Column: col, Value: strings.TrimPrefix(rest, "eq.")}, nil
}
