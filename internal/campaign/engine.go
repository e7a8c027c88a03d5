// Package campaign evaluates time-bounded admission restrictions that tighten
// an option's effective threshold for selected users.
package campaign

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
)

// Engine evaluates a fixed set of campaigns. It is built from the snapshot
// taken at the start of an evaluation and never re-reads configuration.
type Engine struct {
	campaigns []models.Campaign
}

// NewEngine creates an engine over the given campaigns. Deleted campaigns are
// ignored; the rest are ordered by id so reports are stable.
func NewEngine(campaigns []models.Campaign) *Engine {
	live := make([]models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if c.DeletedAt == nil {
			live = append(live, c)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return &Engine{campaigns: live}
}

// Candidates returns the campaigns active at now whose option filter matches opt.
func (e *Engine) Candidates(opt models.Option, now time.Time) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range e.campaigns {
		if !c.ActiveAt(now) {
			continue
		}
		ok, err := matchesOption(c, opt)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// EffectiveBlock reports whether any candidate campaign blocks a new admission
// of the user described by profile. occupancyPercent is the option's confirmed
// occupancy as a percentage of its capacity.
//
// Campaigns combine with OR. The id of the first blocking campaign in id order
// is returned; which campaign is reported never changes whether the user is
// blocked. A campaign with an unusable filter fails closed with a
// configuration error.
func (e *Engine) EffectiveBlock(opt models.Option, profile models.Profile, occupancyPercent float64, now time.Time) (bool, string, error) {
	candidates, err := e.Candidates(opt, now)
	if err != nil {
		return true, "", err
	}

	for _, c := range candidates {
		inPopulation, err := matchesPopulation(c, profile)
		if err != nil {
			return true, c.ID, err
		}
		if !inPopulation {
			continue
		}
		blocked, err := thresholdBlocks(c, occupancyPercent)
		if err != nil {
			return true, c.ID, err
		}
		if blocked {
			return true, c.ID, nil
		}
	}
	return false, "", nil
}

func matchesOption(c models.Campaign, opt models.Option) (bool, error) {
	f := c.OptionFilter
	if f == nil {
		return true, nil
	}
	if !f.Operator.SupportsValue() {
		return false, invalid(c, fmt.Errorf("option filter operator %q is not a value operator", f.Operator))
	}
	actual, _ := opt.Attribute(f.Attribute)
	ok, err := f.Operator.MatchValue(actual, f.Value)
	if err != nil {
		return false, invalid(c, err)
	}
	return ok, nil
}

func matchesPopulation(c models.Campaign, profile models.Profile) (bool, error) {
	f := c.PopulationFilter
	if f == nil {
		return true, nil
	}
	if !f.Operator.SupportsSet() {
		return false, invalid(c, fmt.Errorf("population filter operator %q is not a set operator", f.Operator))
	}
	ok, err := f.Operator.MatchSet(profile.Field(f.ProfileField), f.Values)
	if err != nil {
		return false, invalid(c, err)
	}
	return ok, nil
}

func thresholdBlocks(c models.Campaign, occupancyPercent float64) (bool, error) {
	if c.ThresholdPercent < 0 || c.ThresholdPercent > 100 {
		return true, invalid(c, fmt.Errorf("threshold %d outside 0-100", c.ThresholdPercent))
	}
	threshold := float64(c.ThresholdPercent)
	switch c.BlockOperator {
	case models.BlockAbove:
		return occupancyPercent >= threshold, nil
	case models.BlockBelow:
		return occupancyPercent < threshold, nil
	case models.BlockAlways:
		return true, nil
	default:
		return true, invalid(c, fmt.Errorf("unknown block operator %q", c.BlockOperator))
	}
}

func invalid(c models.Campaign, cause error) error {
	e := apperrors.Configuration(apperrors.CodeInvalidCampaign, fmt.Sprintf("campaign %s is misconfigured", c.ID), cause)
	e.Metadata = map[string]string{"campaign_id": c.ID}
	return e
}
