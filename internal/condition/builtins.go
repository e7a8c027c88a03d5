package condition

import (
	"fmt"

	"github.com/julianstephens/seatwise/internal/decision"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

// Built-in priorities. Gaps leave room for custom conditions.
const (
	PriorityIsCancelled             = 10
	PriorityNotBookable             = 20
	PriorityOptionHasStarted        = 30
	PriorityBookingTimeClosed       = 40
	PriorityProfileMismatch         = 50
	PriorityAllowedToBookInInstance = 60
	PriorityNoOverlapping           = 70
	PriorityCampaignBlocked         = 80
	PriorityPriceIsSet              = 90
)

// Builtins returns a fresh copy of the built-in conditions.
func Builtins() []Condition {
	return []Condition{
		isCancelled{base{PriorityIsCancelled, decision.IsCancelled, true, true}},
		notBookable{base{PriorityNotBookable, decision.NotBookable, true, false}},
		optionHasStarted{base{PriorityOptionHasStarted, decision.OptionHasStarted, true, true}},
		bookingTimeClosed{base{PriorityBookingTimeClosed, decision.BookingTimeClosed, true, false}},
		profileMismatch{base{PriorityProfileMismatch, decision.ProfileMismatch, true, false}},
		instanceLimit{base{PriorityAllowedToBookInInstance, decision.AllowedToBookInInstance, true, false}},
		noOverlapping{base{PriorityNoOverlapping, decision.NoOverlapping, true, false}},
		campaignBlocked{base{PriorityCampaignBlocked, decision.CampaignBlocked, true, false}},
		priceIsSet{base{PriorityPriceIsSet, decision.PriceIsSet, false, false}},
	}
}

type base struct {
	id   int
	code decision.Code
	hard bool
	// everyone marks conditions that also apply to users already holding a
	// seat. The rest only gate new admissions.
	everyone bool
}

func (b base) ID() int                 { return b.id }
func (b base) Code() decision.Code     { return b.code }
func (b base) HardBlocking() bool      { return b.hard }
func (b base) covers(s *Snapshot) bool { return b.everyone || !s.HasSeat() }

type isCancelled struct{ base }

func (c isCancelled) IsApplicable(s *Snapshot) (bool, error) { return c.covers(s), nil }
func (c isCancelled) IsAvailable(s *Snapshot) (bool, error)  { return !s.Option.Cancelled, nil }

type notBookable struct{ base }

func (c notBookable) IsApplicable(s *Snapshot) (bool, error) { return c.covers(s), nil }
func (c notBookable) IsAvailable(s *Snapshot) (bool, error)  { return !s.Option.Disabled, nil }

type optionHasStarted struct{ base }

func (c optionHasStarted) IsApplicable(s *Snapshot) (bool, error) {
	return c.covers(s) && s.Option.StartsAt != nil, nil
}

func (c optionHasStarted) IsAvailable(s *Snapshot) (bool, error) {
	return !s.Option.HasStarted(s.Now), nil
}

type bookingTimeClosed struct{ base }

func (c bookingTimeClosed) IsApplicable(s *Snapshot) (bool, error) {
	return c.covers(s) && (s.Option.BookingOpensAt != nil || s.Option.BookingClosesAt != nil), nil
}

func (c bookingTimeClosed) IsAvailable(s *Snapshot) (bool, error) {
	return s.Option.BookingOpen(s.Now), nil
}

type profileMismatch struct{ base }

func (c profileMismatch) IsApplicable(s *Snapshot) (bool, error) {
	return c.covers(s) && len(s.Option.ProfileRestrictions) > 0, nil
}

// IsAvailable requires every restriction to match the user's profile.
func (c profileMismatch) IsAvailable(s *Snapshot) (bool, error) {
	for _, r := range s.Option.ProfileRestrictions {
		if !r.Operator.SupportsSet() {
			return false, apperrors.Configuration(apperrors.CodeInvalidOption,
				fmt.Sprintf("option %s: restriction on %q uses unsupported operator %q", s.Option.ID, r.Field, r.Operator), nil)
		}
		ok, err := r.Operator.MatchSet(s.Profile.Field(r.Field), r.Values)
		if err != nil {
			return false, apperrors.Configuration(apperrors.CodeInvalidOption,
				fmt.Sprintf("option %s: restriction on %q", s.Option.ID, r.Field), err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

type instanceLimit struct{ base }

func (c instanceLimit) IsApplicable(s *Snapshot) (bool, error) {
	return c.covers(s) && s.Instance != nil && s.Instance.MaxAnswersPerUser > 0, nil
}

func (c instanceLimit) IsAvailable(s *Snapshot) (bool, error) {
	held := 0
	for _, a := range s.OtherAnswers {
		if s.OtherOptions[a.OptionID].InstanceID == s.Instance.ID {
			held++
		}
	}
	return held < s.Instance.MaxAnswersPerUser, nil
}

type noOverlapping struct{ base }

func (c noOverlapping) IsApplicable(s *Snapshot) (bool, error) {
	return c.covers(s) && s.Option.PreventOverlap, nil
}

func (c noOverlapping) IsAvailable(s *Snapshot) (bool, error) {
	if s.Option.StartsAt == nil || s.Option.EndsAt == nil {
		return false, apperrors.Configuration(apperrors.CodeInvalidOption,
			fmt.Sprintf("option %s prevents overlap but has no schedule", s.Option.ID), nil)
	}
	for _, a := range s.OtherAnswers {
		if other, ok := s.OtherOptions[a.OptionID]; ok && s.Option.Overlaps(other) {
			return false, nil
		}
	}
	return true, nil
}

type campaignBlocked struct{ base }

func (c campaignBlocked) IsApplicable(s *Snapshot) (bool, error) {
	if !c.covers(s) || s.Campaigns == nil {
		return false, nil
	}
	candidates, err := s.Campaigns.Candidates(s.Option, s.Now)
	return len(candidates) > 0, err
}

func (c campaignBlocked) IsAvailable(s *Snapshot) (bool, error) {
	blocked, _, err := s.CampaignBlock()
	return !blocked, err
}

type priceIsSet struct{ base }

func (c priceIsSet) IsApplicable(s *Snapshot) (bool, error) {
	return c.covers(s) && s.Option.Price > 0, nil
}

// IsAvailable is always false: a priced option is routed to payment.
func (c priceIsSet) IsAvailable(*Snapshot) (bool, error) { return false, nil }
