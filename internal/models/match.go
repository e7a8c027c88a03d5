package models

import (
	"fmt"
	"strings"
)

// MatchOperator compares a configured value against an option attribute or a
// user profile field.
type MatchOperator string

const (
	MatchEquals       MatchOperator = "equals"
	MatchNotEquals    MatchOperator = "not_equals"
	MatchContains     MatchOperator = "contains"
	MatchNotContains  MatchOperator = "not_contains"
	MatchIsEmpty      MatchOperator = "is_empty"
	MatchIsNotEmpty   MatchOperator = "is_not_empty"
	MatchContainsAny  MatchOperator = "contains_any"
	MatchContainsNone MatchOperator = "contains_none"
)

// ValueOperators are usable against a single attribute value.
var ValueOperators = []MatchOperator{
	MatchEquals, MatchNotEquals, MatchContains, MatchNotContains, MatchIsEmpty, MatchIsNotEmpty,
}

// SetOperators are usable against a multi-valued profile field.
var SetOperators = []MatchOperator{
	MatchContainsAny, MatchContainsNone, MatchEquals, MatchNotEquals, MatchIsEmpty, MatchIsNotEmpty,
}

// SupportsValue reports whether op can be applied by MatchValue.
func (op MatchOperator) SupportsValue() bool {
	for _, v := range ValueOperators {
		if v == op {
			return true
		}
	}
	return false
}

// SupportsSet reports whether op can be applied by MatchSet.
func (op MatchOperator) SupportsSet() bool {
	for _, v := range SetOperators {
		if v == op {
			return true
		}
	}
	return false
}

// MatchValue applies op to a single attribute value. A missing attribute is
// treated as the empty string.
func (op MatchOperator) MatchValue(actual, expected string) (bool, error) {
	switch op {
	case MatchEquals:
		return actual == expected, nil
	case MatchNotEquals:
		return actual != expected, nil
	case MatchContains:
		return strings.Contains(actual, expected), nil
	case MatchNotContains:
		return !strings.Contains(actual, expected), nil
	case MatchIsEmpty:
		return strings.TrimSpace(actual) == "", nil
	case MatchIsNotEmpty:
		return strings.TrimSpace(actual) != "", nil
	default:
		return false, fmt.Errorf("operator %q cannot be applied to a single value", op)
	}
}

// MatchSet applies op to a set of profile values.
//
// equals holds when the user has exactly the expected values; not_equals is its negation.
func (op MatchOperator) MatchSet(actual, expected StringSet) (bool, error) {
	switch op {
	case MatchContainsAny:
		return actual.ContainsAny(expected), nil
	case MatchContainsNone:
		return !actual.ContainsAny(expected), nil
	case MatchEquals:
		return sameSet(actual, expected), nil
	case MatchNotEquals:
		return !sameSet(actual, expected), nil
	case MatchIsEmpty:
		return actual.Len() == 0, nil
	case MatchIsNotEmpty:
		return actual.Len() > 0, nil
	default:
		return false, fmt.Errorf("operator %q cannot be applied to a set of values", op)
	}
}

func sameSet(a, b StringSet) bool {
	if a.Len() != b.Len() {
		return false
	}
	for v := range a {
		if !b.Has(v) {
			return false
		}
	}
	return true
}
