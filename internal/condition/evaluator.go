package condition

import (
	"github.com/julianstephens/seatwise/internal/decision"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/models"
)

// Result is the outcome of one evaluation.
type Result struct {
	Code        decision.Code `json:"code"`
	Available   bool          `json:"available"`
	Explanation string        `json:"explanation,omitempty"`
	// ConditionID is the priority of the blocking condition, 0 when the
	// terminal occupancy rule decided.
	ConditionID int    `json:"condition_id,omitempty"`
	CampaignID  string `json:"campaign_id,omitempty"`
	// Err is set when a condition failed and the result is Misconfigured.
	Err error `json:"-"`
}

var explanations = map[decision.Code]string{
	decision.BookItButton:            "a seat is available",
	decision.BookOnWaitingList:       "the option is full; a waitlist place is available",
	decision.ConfirmBookIt:           "confirm to take the seat",
	decision.AlreadyBooked:           "you hold a seat",
	decision.ConfirmCancel:           "confirm to release your place",
	decision.OnWaitingList:           "you are on the waitlist",
	decision.AskForConfirmation:      "your request awaits approval",
	decision.FullyBooked:             "no seats or waitlist places remain",
	decision.CampaignBlocked:         "a booking campaign restricts new admissions",
	decision.OptionHasStarted:        "the option has already started",
	decision.IsCancelled:             "the option has been cancelled",
	decision.BookingTimeClosed:       "booking is not open",
	decision.AllowedToBookInInstance: "you reached the booking limit for this instance",
	decision.NotBookable:             "the option is not bookable",
	decision.ProfileMismatch:         "your profile does not meet the option's restrictions",
	decision.NoOverlapping:           "you hold another option at the same time",
	decision.PriceIsSet:              "this option requires payment",
	decision.CancelNotAllowed:        "this option cannot be cancelled",
	decision.Misconfigured:           "the option is misconfigured",
}

// Explain returns the human-readable description of a code.
func Explain(code decision.Code) string {
	return explanations[code]
}

type Evaluator struct {
	registry *Registry
}

func NewEvaluator(registry *Registry) *Evaluator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Evaluator{registry: registry}
}

// Evaluate walks the chain. With hardBlockOnly, soft conditions are skipped.
// A condition error fails closed with Misconfigured.
func (e *Evaluator) Evaluate(snap *Snapshot, hardBlockOnly bool) Result {
	for _, c := range e.registry.conditions {
		if hardBlockOnly && !c.HardBlocking() {
			continue
		}

		applicable, err := c.IsApplicable(snap)
		if err != nil {
			return misconfigured(snap, c, err)
		}
		if !applicable {
			continue
		}

		available, err := c.IsAvailable(snap)
		if err != nil {
			return misconfigured(snap, c, err)
		}
		if available {
			continue
		}

		res := Result{Code: c.Code(), ConditionID: c.ID(), Explanation: Explain(c.Code())}
		if c.Code() == decision.CampaignBlocked {
			_, res.CampaignID, _ = snap.CampaignBlock()
		}
		logger.Debug("Condition blocked", "option", snap.Option.ID, "user", snap.UserID, "code", res.Code)
		return res
	}

	return terminal(snap)
}

func misconfigured(snap *Snapshot, c Condition, err error) Result {
	logger.Error("Condition failed, refusing admission",
		"option", snap.Option.ID, "user", snap.UserID, "condition", c.Code(), "priority", c.ID(), "error", err)
	return Result{
		Code:        decision.Misconfigured,
		ConditionID: c.ID(),
		Explanation: Explain(decision.Misconfigured),
		Err:         err,
	}
}

// terminal decides from the user's seat and the option's occupancy once no
// condition has blocked.
func terminal(snap *Snapshot) Result {
	code := occupancyCode(snap)
	available := code.GoAhead()
	if code.Holding() && code != decision.ConfirmCancel {
		available = snap.Option.Cancellable
	}
	return Result{Code: code, Available: available, Explanation: Explain(code)}
}

func occupancyCode(snap *Snapshot) decision.Code {
	cancelArmed := snap.Pending(models.IntentConfirmCancel)

	if snap.Answer != nil {
		if cancelArmed {
			return decision.ConfirmCancel
		}
		switch snap.Answer.Status {
		case models.StatusWaitlisted:
			return decision.OnWaitingList
		case models.StatusPendingApproval:
			return decision.AskForConfirmation
		default:
			return decision.AlreadyBooked
		}
	}

	opt, occ := snap.Option, snap.Occupancy
	primaryFull := occ.PrimaryFull(opt)
	waitlistFull := occ.WaitlistFull(opt)

	if primaryFull && waitlistFull && !opt.RequiresConfirmation {
		return decision.FullyBooked
	}
	if snap.Pending(models.IntentConfirmBook) {
		return decision.ConfirmBookIt
	}
	if primaryFull && !opt.RequiresConfirmation {
		return decision.BookOnWaitingList
	}
	return decision.BookItButton
}
