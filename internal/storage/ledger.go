package storage

import (
	"errors"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCapacityExhausted is returned when a capacity guard rejects a transition.
	// It is a business outcome, not a failure of the store.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// ErrIllegalTransition is returned for transitions the ledger cannot express,
	// such as deleting an answer that does not exist.
	ErrIllegalTransition = errors.New("illegal transition")
)

// CapacityGuard bounds the number of active answers in the given statuses.
// The subject's own answer is excluded from the count.
type CapacityGuard struct {
	Statuses []models.AnswerStatus
	Limit    int
}

// TransitionRequest describes one ledger mutation.
type TransitionRequest struct {
	OptionID string
	UserID   string
	To       models.AnswerStatus
	ActorID  string
	At       time.Time
	// Guard, when set, is checked against a count taken inside the write transaction.
	Guard *CapacityGuard
	// Expect, when set, is the status the caller observed before deciding.
	// The empty status means "no active answer". A mismatch is a lost race.
	Expect *models.AnswerStatus
}

// Expect returns a pointer suitable for TransitionRequest.Expect.
func Expect(status models.AnswerStatus) *models.AnswerStatus {
	return &status
}

// TransitionOp is the write a backend must perform for a request.
type TransitionOp struct {
	// Insert is true when a new answer row is created; otherwise AnswerID is updated.
	Insert    bool
	AnswerID  string
	OldStatus models.AnswerStatus
	NewStatus models.AnswerStatus
}

// PlanTransition validates req against the caller's view of the ledger and
// returns the write to perform. active holds every active answer found for
// the pair inside the transaction; occupied is the guarded count excluding
// the subject's own answer.
func PlanTransition(req TransitionRequest, active []models.Answer, occupied int, newID func() string) (TransitionOp, error) {
	if !req.To.Valid() {
		return TransitionOp{}, apperrors.Configuration(apperrors.CodeUnknownAnswerStatus, fmt.Sprintf("unknown answer status %q", req.To), nil)
	}
	if len(active) > 1 {
		return TransitionOp{}, DuplicateActive(req.OptionID, req.UserID, len(active))
	}

	var current *models.Answer
	if len(active) == 1 {
		current = &active[0]
	}

	if req.Expect != nil {
		observed := models.AnswerStatus("")
		if current != nil {
			observed = current.Status
		}
		if observed != *req.Expect {
			return TransitionOp{}, apperrors.Contention(apperrors.CodeConcurrentCommit,
				fmt.Sprintf("answer for %s on %s changed from %q to %q", req.UserID, req.OptionID, *req.Expect, observed), nil)
		}
	}

	if req.Guard != nil && req.To.IsActive() && occupied >= req.Guard.Limit {
		return TransitionOp{}, ErrCapacityExhausted
	}

	if current == nil {
		if !req.To.IsActive() {
			return TransitionOp{}, fmt.Errorf("%w: user %s holds no answer on %s", ErrIllegalTransition, req.UserID, req.OptionID)
		}
		return TransitionOp{Insert: true, AnswerID: newID(), NewStatus: req.To}, nil
	}

	to := req.To
	if !to.IsActive() {
		to = current.Status.DeletedVariant()
	}
	if to == current.Status {
		return TransitionOp{}, fmt.Errorf("%w: answer already %s", ErrIllegalTransition, to)
	}
	return TransitionOp{AnswerID: current.ID, OldStatus: current.Status, NewStatus: to}, nil
}

// DuplicateActive reports the at-most-one-active-answer invariant as broken.
func DuplicateActive(optionID, userID string, n int) error {
	return apperrors.Invariant(apperrors.CodeDuplicateActiveSeat,
		fmt.Sprintf("%d active answers for user %s on option %s", n, userID, optionID),
		map[string]string{"option_id": optionID, "user_id": userID})
}

// ActiveStatusList renders the active statuses for SQL IN clauses built by the backends.
func ActiveStatusList() []interface{} {
	out := make([]interface{}, len(models.ActiveStatuses))
	for i, s := range models.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}
