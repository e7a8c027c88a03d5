package models

import "time"

// ProfileRestriction limits an option to users whose profile field matches.
type ProfileRestriction struct {
	Field    string        `json:"field" validate:"required"`
	Operator MatchOperator `json:"operator" validate:"required"`
	Values   StringSet     `json:"values"`
}

// Option is a bookable unit with a finite number of seats.
type Option struct {
	ID                   string               `json:"id" validate:"required,max=64"`
	InstanceID           string               `json:"instance_id,omitempty" validate:"omitempty,max=64"`
	Title                string               `json:"title" validate:"required,max=255"`
	Capacity             int                  `json:"capacity" validate:"gte=0"`             // 0 means unlimited
	OverbookingCapacity  int                  `json:"overbooking_capacity" validate:"gte=0"` // waitlist size
	BookingOpensAt       *time.Time           `json:"booking_opens_at,omitempty"`
	BookingClosesAt      *time.Time           `json:"booking_closes_at,omitempty"`
	StartsAt             *time.Time           `json:"starts_at,omitempty"`
	EndsAt               *time.Time           `json:"ends_at,omitempty"`
	RequiresConfirmation bool                 `json:"requires_confirmation"`
	ApprovalHoldsSeat    bool                 `json:"approval_holds_seat"` // pending approvals count against capacity
	Cancellable          bool                 `json:"cancellable"`
	Disabled             bool                 `json:"disabled"`
	PreventOverlap       bool                 `json:"prevent_overlap"`
	Price                float64              `json:"price" validate:"gte=0"`
	Cancelled            bool                 `json:"cancelled"`
	ProfileRestrictions  []ProfileRestriction `json:"profile_restrictions,omitempty" validate:"dive"`
	CustomAttributes     map[string]string    `json:"custom_attributes,omitempty"`
}

// Unlimited reports whether the option has no primary seat limit.
func (o Option) Unlimited() bool {
	return o.Capacity == 0
}

// HasStarted reports whether the option's own schedule has begun.
func (o Option) HasStarted(now time.Time) bool {
	return o.StartsAt != nil && !now.Before(*o.StartsAt)
}

// BookingOpen reports whether now lies inside the booking window. Missing
// bounds are open ended.
func (o Option) BookingOpen(now time.Time) bool {
	if o.BookingOpensAt != nil && now.Before(*o.BookingOpensAt) {
		return false
	}
	if o.BookingClosesAt != nil && !now.Before(*o.BookingClosesAt) {
		return false
	}
	return true
}

// Overlaps reports whether both options have a complete schedule and the two
// intervals intersect.
func (o Option) Overlaps(other Option) bool {
	if o.StartsAt == nil || o.EndsAt == nil || other.StartsAt == nil || other.EndsAt == nil {
		return false
	}
	return o.StartsAt.Before(*other.EndsAt) && other.StartsAt.Before(*o.EndsAt)
}

// Attribute resolves a filter attribute name. The built-in names "id",
// "title" and "instance_id" address option fields; anything else is looked up
// in CustomAttributes.
func (o Option) Attribute(name string) (string, bool) {
	switch name {
	case "id":
		return o.ID, true
	case "title":
		return o.Title, true
	case "instance_id":
		return o.InstanceID, o.InstanceID != ""
	}
	v, ok := o.CustomAttributes[name]
	return v, ok
}

// Instance groups options and carries limits that span all of them.
type Instance struct {
	ID                string `json:"id" validate:"required,max=64"`
	Name              string `json:"name" validate:"required,max=255"`
	MaxAnswersPerUser int    `json:"max_answers_per_user" validate:"gte=0"` // 0 means unlimited
}
