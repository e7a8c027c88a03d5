// Package condition decides, for one option and one user, which single
// outcome code applies. Conditions run in priority order against an
// immutable Snapshot; the first applicable and unavailable one wins.
package condition

import (
	"fmt"
	"sort"

	"github.com/julianstephens/seatwise/internal/decision"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

// Condition is one rule of the chain. IsApplicable and IsAvailable must be
// pure functions of the snapshot. An error from either means the rule is
// misconfigured for this option.
type Condition interface {
	ID() int
	Code() decision.Code
	HardBlocking() bool
	IsApplicable(*Snapshot) (bool, error)
	IsAvailable(*Snapshot) (bool, error)
}

// Registry is an immutable list of conditions sorted by priority.
type Registry struct {
	conditions []Condition
}

// NewRegistry sorts the conditions by ID and rejects duplicate priorities.
func NewRegistry(conditions ...Condition) (*Registry, error) {
	sorted := make([]Condition, len(conditions))
	copy(sorted, conditions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID() == sorted[i-1].ID() {
			return nil, apperrors.Configuration(apperrors.CodeDuplicatePriority,
				fmt.Sprintf("conditions %s and %s share priority %d", sorted[i-1].Code(), sorted[i].Code(), sorted[i].ID()), nil)
		}
	}
	return &Registry{conditions: sorted}, nil
}

// DefaultRegistry returns the built-in chain.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Conditions returns the chain in evaluation order.
func (r *Registry) Conditions() []Condition {
	out := make([]Condition, len(r.conditions))
	copy(out, r.conditions)
	return out
}

// Lookup finds a condition by code.
func (r *Registry) Lookup(code decision.Code) (Condition, bool) {
	for _, c := range r.conditions {
		if c.Code() == code {
			return c, true
		}
	}
	return nil, false
}
