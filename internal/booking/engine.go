// Package booking drives the two-click booking protocol on top of the
// condition chain and the seat ledger.
package booking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/julianstephens/seatwise/internal/condition"
	"github.com/julianstephens/seatwise/internal/constants"
	"github.com/julianstephens/seatwise/internal/decision"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/lock"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
	"github.com/julianstephens/seatwise/internal/telemetry"
)

// commitAttempts bounds how often a commit re-plans after losing a guarded
// write to another process.
const commitAttempts = 2

type Options struct {
	IntentTTL time.Duration
	Registry  *condition.Registry
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Outcome is the result of one Act call. Entry is set when the call wrote
// to the ledger.
type Outcome struct {
	condition.Result
	Entry *models.HistoryEntry `json:"entry,omitempty"`
}

type Engine struct {
	store     storage.Provider
	locker    lock.Locker
	loader    *condition.Loader
	evaluator *condition.Evaluator
	now       func() time.Time
	tracer    trace.Tracer
}

func NewEngine(store storage.Provider, locker lock.Locker, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IntentTTL == 0 {
		opts.IntentTTL = constants.DefaultIntentTTL
	}
	if locker == nil {
		locker = lock.NewLocalLocker(constants.DefaultLockTimeout)
	}
	return &Engine{
		store:     store,
		locker:    locker,
		loader:    condition.NewLoader(store, opts.IntentTTL, opts.Now),
		evaluator: condition.NewEvaluator(opts.Registry),
		now:       opts.Now,
		tracer:    telemetry.Tracer(),
	}
}

func (e *Engine) startSpan(ctx context.Context, name, optionID, userID string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("seatwise.option_id", optionID),
		attribute.String("seatwise.user_id", userID),
	))
}

func endSpan(span trace.Span, code decision.Code, err error) {
	if code != "" {
		span.SetAttributes(attribute.String("seatwise.decision", string(code)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) load(optionID, userID string) (*condition.Snapshot, error) {
	snap, err := e.loader.Load(optionID, userID)
	if err != nil && apperrors.IsInvariant(err) {
		logger.Error("Ledger invariant violated", "option", optionID, "user", userID, "error", err)
	}
	return snap, err
}

// Evaluate reports the outcome code for the user without changing anything.
func (e *Engine) Evaluate(ctx context.Context, optionID, userID string, hardBlockOnly bool) (res condition.Result, err error) {
	_, span := e.startSpan(ctx, "booking.Evaluate", optionID, userID)
	defer func() { endSpan(span, res.Code, err) }()

	snap, err := e.load(optionID, userID)
	if err != nil {
		return condition.Result{}, err
	}
	return e.evaluator.Evaluate(snap, hardBlockOnly), nil
}

// Act advances the two-click protocol by one step. The first click arms an
// intent; the second commits it under the option lock.
func (e *Engine) Act(ctx context.Context, optionID, userID string) (out Outcome, err error) {
	ctx, span := e.startSpan(ctx, "booking.Act", optionID, userID)
	defer func() { endSpan(span, out.Code, err) }()

	snap, err := e.load(optionID, userID)
	if err != nil {
		return Outcome{}, err
	}

	res := e.evaluator.Evaluate(snap, true)
	if blocked(res) {
		e.clearIntent(optionID, userID)
		return Outcome{Result: res}, nil
	}

	if !snap.HasSeat() {
		if !snap.Pending(models.IntentConfirmBook) {
			return e.arm(snap, models.IntentConfirmBook, decision.ConfirmBookIt)
		}
		return e.commitBooking(ctx, optionID, userID)
	}

	if !snap.Option.Cancellable {
		e.clearIntent(optionID, userID)
		return outcome(decision.CancelNotAllowed, false), nil
	}
	if !snap.Pending(models.IntentConfirmCancel) {
		return e.arm(snap, models.IntentConfirmCancel, decision.ConfirmCancel)
	}
	return e.commitCancel(ctx, optionID, userID)
}

// blocked reports results that end an Act call without touching the ledger.
func blocked(res condition.Result) bool {
	return res.ConditionID != 0 || res.Code == decision.Misconfigured || res.Code == decision.FullyBooked
}

func outcome(code decision.Code, available bool) Outcome {
	return Outcome{Result: condition.Result{Code: code, Available: available, Explanation: condition.Explain(code)}}
}

func (e *Engine) arm(snap *condition.Snapshot, kind models.IntentKind, code decision.Code) (Outcome, error) {
	intent := models.Intent{OptionID: snap.Option.ID, UserID: snap.UserID, Kind: kind, CreatedAt: snap.Now}
	if err := e.store.SaveIntent(intent); err != nil {
		return Outcome{}, fmt.Errorf("failed to save intent: %w", err)
	}
	logger.Debug("Intent armed", "option", snap.Option.ID, "user", snap.UserID, "kind", kind)
	return outcome(code, true), nil
}

func (e *Engine) clearIntent(optionID, userID string) {
	if err := e.store.ClearIntent(optionID, userID); err != nil {
		logger.Warn("Failed to clear intent", "option", optionID, "user", userID, "error", err)
	}
}

// placement picks the status and capacity guard for a new admission.
func placement(snap *condition.Snapshot) (models.AnswerStatus, *storage.CapacityGuard, bool) {
	opt, occ := snap.Option, snap.Occupancy
	switch {
	case opt.RequiresConfirmation:
		return models.StatusPendingApproval, nil, true
	case !occ.PrimaryFull(opt):
		return models.StatusBooked, PrimaryGuard(opt), true
	case !occ.WaitlistFull(opt):
		return models.StatusWaitlisted, WaitlistGuard(opt), true
	default:
		return "", nil, false
	}
}

// PrimaryGuard bounds confirmed seats; nil for unlimited options.
func PrimaryGuard(opt models.Option) *storage.CapacityGuard {
	if opt.Unlimited() {
		return nil
	}
	statuses := []models.AnswerStatus{models.StatusBooked}
	if opt.ApprovalHoldsSeat {
		statuses = append(statuses, models.StatusPendingApproval)
	}
	return &storage.CapacityGuard{Statuses: statuses, Limit: opt.Capacity}
}

// WaitlistGuard bounds the waitlist pool.
func WaitlistGuard(opt models.Option) *storage.CapacityGuard {
	return &storage.CapacityGuard{Statuses: []models.AnswerStatus{models.StatusWaitlisted}, Limit: opt.OverbookingCapacity}
}

func (e *Engine) commitBooking(ctx context.Context, optionID, userID string) (Outcome, error) {
	release, err := e.locker.Acquire(ctx, optionID)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		snap, err := e.load(optionID, userID)
		if err != nil {
			return Outcome{}, err
		}

		res := e.evaluator.Evaluate(snap, true)
		if blocked(res) {
			e.clearIntent(optionID, userID)
			return Outcome{Result: res}, nil
		}
		if res.Code != decision.ConfirmBookIt {
			// Another request already committed or the intent expired.
			return Outcome{Result: res}, nil
		}

		to, guard, ok := placement(snap)
		if !ok {
			e.clearIntent(optionID, userID)
			return outcome(decision.FullyBooked, false), nil
		}

		entry, err := e.store.Transition(storage.TransitionRequest{
			OptionID: optionID,
			UserID:   userID,
			To:       to,
			ActorID:  userID,
			At:       e.now(),
			Guard:    guard,
			Expect:   storage.Expect(""),
		})
		if errors.Is(err, storage.ErrCapacityExhausted) && attempt < commitAttempts {
			logger.Debug("Guard rejected commit, replanning", "option", optionID, "user", userID, "status", to)
			continue
		}
		if errors.Is(err, storage.ErrCapacityExhausted) {
			e.clearIntent(optionID, userID)
			return e.reevaluate(optionID, userID, nil)
		}
		if err != nil {
			return Outcome{}, err
		}

		e.clearIntent(optionID, userID)
		logger.Info("Answer committed", "option", optionID, "user", userID, "status", entry.NewStatus, "seq", entry.Seq)
		return e.reevaluate(optionID, userID, &entry)
	}
}

func (e *Engine) commitCancel(ctx context.Context, optionID, userID string) (Outcome, error) {
	release, err := e.locker.Acquire(ctx, optionID)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	snap, err := e.load(optionID, userID)
	if err != nil {
		return Outcome{}, err
	}
	res := e.evaluator.Evaluate(snap, true)
	if blocked(res) {
		e.clearIntent(optionID, userID)
		return Outcome{Result: res}, nil
	}
	if res.Code != decision.ConfirmCancel || snap.Answer == nil {
		return Outcome{Result: res}, nil
	}

	entry, err := e.store.Transition(storage.TransitionRequest{
		OptionID: optionID,
		UserID:   userID,
		To:       snap.Answer.Status.DeletedVariant(),
		ActorID:  userID,
		At:       e.now(),
		Expect:   storage.Expect(snap.Answer.Status),
	})
	if err != nil {
		return Outcome{}, err
	}

	e.clearIntent(optionID, userID)
	logger.Info("Answer cancelled", "option", optionID, "user", userID, "status", entry.NewStatus, "seq", entry.Seq)
	return e.reevaluate(optionID, userID, &entry)
}

func (e *Engine) reevaluate(optionID, userID string, entry *models.HistoryEntry) (Outcome, error) {
	snap, err := e.load(optionID, userID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: e.evaluator.Evaluate(snap, false), Entry: entry}, nil
}

// AdminTransition moves a user's answer directly, bypassing the click
// protocol and the condition chain. Capacity still applies: entering
// booked is bounded by the primary pool and entering waitlisted by the
// waitlist pool.
func (e *Engine) AdminTransition(ctx context.Context, optionID, userID string, to models.AnswerStatus, actorID string) (entry models.HistoryEntry, err error) {
	ctx, span := e.startSpan(ctx, "booking.AdminTransition", optionID, userID)
	span.SetAttributes(attribute.String("seatwise.actor_id", actorID), attribute.String("seatwise.target", string(to)))
	defer func() { endSpan(span, "", err) }()

	if actorID == "" {
		return models.HistoryEntry{}, fmt.Errorf("admin transition requires an actor")
	}

	release, err := e.locker.Acquire(ctx, optionID)
	if err != nil {
		return models.HistoryEntry{}, err
	}
	defer release()

	opt, err := e.store.GetOption(optionID)
	if err != nil {
		return models.HistoryEntry{}, err
	}

	var guard *storage.CapacityGuard
	switch to {
	case models.StatusBooked:
		guard = PrimaryGuard(opt)
	case models.StatusWaitlisted:
		guard = WaitlistGuard(opt)
	}

	entry, err = e.store.Transition(storage.TransitionRequest{
		OptionID: optionID,
		UserID:   userID,
		To:       to,
		ActorID:  actorID,
		At:       e.now(),
		Guard:    guard,
	})
	if err != nil {
		return models.HistoryEntry{}, err
	}

	e.clearIntent(optionID, userID)
	logger.Info("Admin transition", "option", optionID, "user", userID, "actor", actorID,
		"from", entry.OldStatus, "to", entry.NewStatus, "seq", entry.Seq)
	return entry, nil
}

// CancelOption marks the option cancelled. Answers are kept; every user
// then evaluates to IsCancelled.
func (e *Engine) CancelOption(ctx context.Context, optionID, actorID string) error {
	return e.setCancelled(ctx, optionID, actorID, true)
}

func (e *Engine) RestoreOption(ctx context.Context, optionID, actorID string) error {
	return e.setCancelled(ctx, optionID, actorID, false)
}

func (e *Engine) setCancelled(ctx context.Context, optionID, actorID string, cancelled bool) (err error) {
	_, span := e.startSpan(ctx, "booking.SetCancelled", optionID, "")
	defer func() { endSpan(span, "", err) }()

	if err := e.store.SetOptionCancelled(optionID, cancelled); err != nil {
		return err
	}
	logger.Info("Option cancel flag changed", "option", optionID, "cancelled", cancelled, "actor", actorID)
	return nil
}

// Waitlist lists the option's waitlisted answers in the order they joined the
// waitlist, taken from the latest history entry that moved each answer there.
func (e *Engine) Waitlist(optionID string) ([]models.Answer, error) {
	answers, err := e.store.GetAnswersForOption(optionID, false)
	if err != nil {
		return nil, err
	}
	var out []models.Answer
	for _, a := range answers {
		if a.Status == models.StatusWaitlisted {
			out = append(out, a)
		}
	}
	if len(out) < 2 {
		return out, nil
	}

	history, err := e.store.GetOptionHistory(optionID)
	if err != nil {
		return nil, err
	}
	joined := make(map[string]int64, len(out))
	for _, h := range history {
		if h.NewStatus == models.StatusWaitlisted {
			joined[h.AnswerID] = h.Seq
		}
	}
	slices.SortStableFunc(out, func(a, b models.Answer) int {
		return cmp.Compare(joined[a.ID], joined[b.ID])
	})
	return out, nil
}

// NextInWaitlist returns the longest-waiting waitlisted answer, or nil.
// Promotion itself is left to an administrator or an external job.
func (e *Engine) NextInWaitlist(optionID string) (*models.Answer, error) {
	waitlist, err := e.Waitlist(optionID)
	if err != nil || len(waitlist) == 0 {
		return nil, err
	}
	return &waitlist[0], nil
}

// History returns the user's ledger history on the option, oldest first.
func (e *Engine) History(optionID, userID string) ([]models.HistoryEntry, error) {
	if userID == "" {
		return e.store.GetOptionHistory(optionID)
	}
	return e.store.GetHistory(optionID, userID)
}
