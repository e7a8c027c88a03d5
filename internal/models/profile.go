package models

import "time"

// Profile holds the user attributes conditions and campaigns match against.
type Profile struct {
	UserID string               `json:"user_id" validate:"required"`
	Fields map[string]StringSet `json:"fields"`
}

// Field returns the values of a profile field; a missing field is empty.
func (p Profile) Field(name string) StringSet {
	if v, ok := p.Fields[name]; ok {
		return v
	}
	return StringSet{}
}

// IntentKind names the step a user has armed with a first click.
type IntentKind string

const (
	IntentConfirmBook   IntentKind = "confirm_book"
	IntentConfirmCancel IntentKind = "confirm_cancel"
)

// Intent is the persisted protocol state between the two clicks of a booking
// or cancellation.
type Intent struct {
	OptionID  string     `json:"option_id"`
	UserID    string     `json:"user_id"`
	Kind      IntentKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the intent is older than ttl. A zero ttl never expires.
func (i Intent) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(i.CreatedAt) >= ttl
}
