package models

import "time"

// BlockOperator decides how a campaign compares occupancy to its threshold.
type BlockOperator string

const (
	// BlockAbove blocks once occupancy reaches the threshold.
	BlockAbove BlockOperator = "block_above"
	// BlockBelow blocks while occupancy is under the threshold.
	BlockBelow BlockOperator = "block_below"
	// BlockAlways blocks whenever the filters match.
	BlockAlways BlockOperator = "block_always"
)

// Valid reports whether b is a known operator.
func (b BlockOperator) Valid() bool {
	return b == BlockAbove || b == BlockBelow || b == BlockAlways
}

// OptionFilter selects the options a campaign applies to.
type OptionFilter struct {
	Attribute string        `json:"attribute" validate:"required"`
	Operator  MatchOperator `json:"operator" validate:"required"`
	Value     string        `json:"value"`
}

// PopulationFilter selects the users a campaign applies to.
type PopulationFilter struct {
	ProfileField string        `json:"profile_field" validate:"required"`
	Operator     MatchOperator `json:"operator" validate:"required"`
	Values       StringSet     `json:"values"`
}

// Campaign is a time-bounded admission restriction.
type Campaign struct {
	ID               string            `json:"id" validate:"required,max=64"`
	Name             string            `json:"name" validate:"required,max=255"`
	StartsAt         time.Time         `json:"starts_at" validate:"required"`
	EndsAt           time.Time         `json:"ends_at" validate:"required,gtfield=StartsAt"`
	OptionFilter     *OptionFilter     `json:"option_filter,omitempty"`
	PopulationFilter *PopulationFilter `json:"population_filter,omitempty"`
	BlockOperator    BlockOperator     `json:"block_operator" validate:"required,oneof=block_above block_below block_always"`
	ThresholdPercent int               `json:"threshold_percent" validate:"gte=0,lte=100"`
	DeletedAt        *time.Time        `json:"deleted_at,omitempty"`
}

// ActiveAt reports whether now lies in [StartsAt, EndsAt).
func (c Campaign) ActiveAt(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}
