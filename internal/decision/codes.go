// Package decision defines the stable outcome codes of an admission decision.
//
// Callers branch on these values. A code's value and meaning never change
// once published; new outcomes are added as new codes.
package decision

// Code is the single outcome of one evaluation.
type Code string

const (
	// BookItButton: the user holds no seat and may start booking.
	BookItButton Code = "book_it_button"
	// BookOnWaitingList: primary seats are gone but the waitlist has room.
	BookOnWaitingList Code = "book_on_waiting_list"
	// ConfirmBookIt: the first click was registered; the next act commits.
	ConfirmBookIt Code = "confirm_book_it"
	// AlreadyBooked: the user holds a primary seat.
	AlreadyBooked Code = "already_booked"
	// ConfirmCancel: the first cancel click was registered; the next act cancels.
	ConfirmCancel Code = "confirm_cancel"
	// OnWaitingList: the user is queued on the waitlist.
	OnWaitingList Code = "on_waiting_list"
	// AskForConfirmation: the user's request awaits administrative approval.
	AskForConfirmation Code = "ask_for_confirmation"
	// FullyBooked: both the primary pool and the waitlist are exhausted.
	FullyBooked Code = "fully_booked"
	// CampaignBlocked: an active campaign refuses new admissions for this user.
	CampaignBlocked Code = "campaign_blocked"
	// OptionHasStarted: the option's schedule has begun.
	OptionHasStarted Code = "option_has_started"
	// IsCancelled: the whole option was cancelled by an administrator.
	IsCancelled Code = "is_cancelled"
	// BookingTimeClosed: now is outside the booking window.
	BookingTimeClosed Code = "booking_time_closed"
	// AllowedToBookInInstance: the user reached the per-instance answer limit.
	AllowedToBookInInstance Code = "allowed_to_book_in_instance"
	// NotBookable: the option is disabled for self-service booking.
	NotBookable Code = "not_bookable"
	// ProfileMismatch: the user's profile does not satisfy the option's restrictions.
	ProfileMismatch Code = "profile_mismatch"
	// NoOverlapping: the user holds a seat in an option whose schedule overlaps.
	NoOverlapping Code = "no_overlapping"
	// PriceIsSet: the option has a price; the UI should offer the payment path.
	PriceIsSet Code = "price_is_set"
	// CancelNotAllowed: the option does not allow users to cancel.
	CancelNotAllowed Code = "cancel_not_allowed"
	// Misconfigured: a condition could not be evaluated; the chain failed closed.
	Misconfigured Code = "misconfigured"
)

var known = map[Code]struct{}{
	BookItButton: {}, BookOnWaitingList: {}, ConfirmBookIt: {}, AlreadyBooked: {},
	ConfirmCancel: {}, OnWaitingList: {}, AskForConfirmation: {}, FullyBooked: {},
	CampaignBlocked: {}, OptionHasStarted: {}, IsCancelled: {}, BookingTimeClosed: {},
	AllowedToBookInInstance: {}, NotBookable: {}, ProfileMismatch: {}, NoOverlapping: {},
	PriceIsSet: {}, CancelNotAllowed: {}, Misconfigured: {},
}

// Valid reports whether c is a published code.
func (c Code) Valid() bool {
	_, ok := known[c]
	return ok
}

// Holding reports whether the code describes a user who holds or queues a seat.
func (c Code) Holding() bool {
	switch c {
	case AlreadyBooked, OnWaitingList, AskForConfirmation, ConfirmCancel:
		return true
	}
	return false
}

// GoAhead reports whether the code invites the user to act. Every other
// code is a business refusal or a status report.
func (c Code) GoAhead() bool {
	switch c {
	case BookItButton, BookOnWaitingList, ConfirmBookIt, ConfirmCancel:
		return true
	}
	return false
}

func (c Code) String() string { return string(c) }
