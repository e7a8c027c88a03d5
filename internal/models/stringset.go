package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StringSet is an unordered set of non-empty strings. Multi-valued profile
// fields and filter value lists are carried as sets so matching never has to
// re-split comma separated text.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given values, trimming whitespace and
// dropping empty entries.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

// ParseStringSet parses a comma separated list such as "math, physics,,art".
func ParseStringSet(raw string) StringSet {
	return NewStringSet(strings.Split(raw, ",")...)
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s StringSet) Len() int { return len(s) }

// ContainsAny reports whether the two sets share at least one value.
func (s StringSet) ContainsAny(other StringSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for v := range small {
		if large.Has(v) {
			return true
		}
	}
	return false
}

// Values returns the members in sorted order.
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// String renders the set in its comma separated storage form.
func (s StringSet) String() string {
	return strings.Join(s.Values(), ",")
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON accepts either a JSON array of strings or a single comma
// separated string.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = NewStringSet(list...)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("string set must be an array or a comma separated string: %w", err)
	}
	*s = ParseStringSet(raw)
	return nil
}
