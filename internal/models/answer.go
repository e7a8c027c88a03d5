package models

import "time"

// AnswerStatus is the state of a user's seat record.
type AnswerStatus string

const (
	StatusBooked     AnswerStatus = "booked"
	StatusWaitlisted AnswerStatus = "waitlisted"
	// StatusPendingApproval is a request on an option that requires
	// confirmation. It waits for an administrator to move it to booked.
	StatusPendingApproval AnswerStatus = "pending_approval"
	StatusDeleted         AnswerStatus = "deleted"
	StatusWaitlistDeleted AnswerStatus = "waitlist_deleted"
)

// ActiveStatuses are the statuses of a held or queued seat. At most one
// answer per (option, user) may carry one of them.
var ActiveStatuses = []AnswerStatus{StatusBooked, StatusWaitlisted, StatusPendingApproval}

// Valid reports whether s is a known status.
func (s AnswerStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusWaitlisted, StatusPendingApproval, StatusDeleted, StatusWaitlistDeleted:
		return true
	}
	return false
}

// IsActive reports whether s holds or queues a seat.
func (s AnswerStatus) IsActive() bool {
	return s == StatusBooked || s == StatusWaitlisted || s == StatusPendingApproval
}

// DeletedVariant returns the deleted status matching the pool the answer was in.
func (s AnswerStatus) DeletedVariant() AnswerStatus {
	if s == StatusWaitlisted {
		return StatusWaitlistDeleted
	}
	return StatusDeleted
}

// Answer ties one user to one option.
type Answer struct {
	ID        string       `json:"id"`
	OptionID  string       `json:"option_id"`
	UserID    string       `json:"user_id"`
	Status    AnswerStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HistoryEntry records one status transition. Entries are append-only.
type HistoryEntry struct {
	ID        string       `json:"id"`
	Seq       int64        `json:"seq"`
	AnswerID  string       `json:"answer_id"`
	OptionID  string       `json:"option_id"`
	UserID    string       `json:"user_id"`
	OldStatus AnswerStatus `json:"old_status,omitempty"`
	NewStatus AnswerStatus `json:"new_status"`
	ActorID   string       `json:"actor_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// Occupancy summarises the two seat pools of an option.
type Occupancy struct {
	Booked          int `json:"booked"`
	Waitlisted      int `json:"waitlisted"`
	PendingApproval int `json:"pending_approval"`
}

// Confirmed returns the seats counted against primary capacity.
func (o Occupancy) Confirmed(opt Option) int {
	if opt.ApprovalHoldsSeat {
		return o.Booked + o.PendingApproval
	}
	return o.Booked
}

// PrimaryFull reports whether no primary seat is left.
func (o Occupancy) PrimaryFull(opt Option) bool {
	return !opt.Unlimited() && o.Confirmed(opt) >= opt.Capacity
}

// WaitlistFull reports whether the overbooking pool is exhausted.
func (o Occupancy) WaitlistFull(opt Option) bool {
	return o.Waitlisted >= opt.OverbookingCapacity
}

// Percent returns confirmed occupancy as a percentage of capacity. Options
// with unlimited capacity always report 0.
func (o Occupancy) Percent(opt Option) float64 {
	if opt.Unlimited() {
		return 0
	}
	return float64(o.Confirmed(opt)) * 100 / float64(opt.Capacity)
}
