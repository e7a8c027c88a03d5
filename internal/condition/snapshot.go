package condition

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/seatwise/internal/campaign"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

// Snapshot is everything one evaluation may look at. It is loaded once and
// never refreshed while conditions run.
type Snapshot struct {
	Option   models.Option
	Instance *models.Instance
	UserID   string
	Profile  models.Profile
	// Answer is the user's active answer on Option, nil when the user holds nothing.
	Answer *models.Answer
	// OtherAnswers are the user's active answers on other options, with
	// OtherOptions holding those options by id.
	OtherAnswers []models.Answer
	OtherOptions map[string]models.Option
	Occupancy    models.Occupancy
	Campaigns    *campaign.Engine
	// Intent is the user's armed first click, nil when absent or expired.
	Intent *models.Intent
	Now    time.Time
}

// HasSeat reports whether the user holds an active answer on the option.
func (s *Snapshot) HasSeat() bool {
	return s.Answer != nil
}

// Pending reports whether an unexpired intent of the given kind is armed.
func (s *Snapshot) Pending(kind models.IntentKind) bool {
	return s.Intent != nil && s.Intent.Kind == kind
}

// CampaignBlock asks the campaign engine whether a new admission is blocked.
func (s *Snapshot) CampaignBlock() (bool, string, error) {
	if s.Campaigns == nil {
		return false, "", nil
	}
	return s.Campaigns.EffectiveBlock(s.Option, s.Profile, s.Occupancy.Percent(s.Option), s.Now)
}

// Loader builds snapshots from a store.
type Loader struct {
	store     storage.Provider
	intentTTL time.Duration
	now       func() time.Time
}

func NewLoader(store storage.Provider, intentTTL time.Duration, now func() time.Time) *Loader {
	if now == nil {
		now = time.Now
	}
	return &Loader{store: store, intentTTL: intentTTL, now: now}
}

// Now returns the loader's clock reading.
func (l *Loader) Now() time.Time {
	return l.now()
}

// Load reads the option, the user's state and the option's occupancy.
// Ledger invariant violations found while reading are returned as errors.
func (l *Loader) Load(optionID, userID string) (*Snapshot, error) {
	opt, err := l.store.GetOption(optionID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Option:       opt,
		UserID:       userID,
		OtherOptions: map[string]models.Option{},
		Now:          l.now(),
	}

	if opt.InstanceID != "" {
		inst, err := l.store.GetInstance(opt.InstanceID)
		switch {
		case err == nil:
			snap.Instance = &inst
		case errors.Is(err, storage.ErrNotFound):
			logger.Warn("Option references unknown instance", "option", opt.ID, "instance", opt.InstanceID)
		default:
			return nil, err
		}
	}

	if snap.Profile, err = l.store.GetProfile(userID); err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if snap.Answer, err = l.store.GetAnswer(optionID, userID); err != nil {
		return nil, err
	}

	if snap.Occupancy, err = l.store.GetOccupancy(optionID); err != nil {
		return nil, fmt.Errorf("failed to load occupancy: %w", err)
	}
	if !opt.Unlimited() && snap.Occupancy.Booked > opt.Capacity {
		return nil, apperrors.Invariant(apperrors.CodeCapacityExceeded,
			fmt.Sprintf("option %s has %d booked answers for capacity %d", opt.ID, snap.Occupancy.Booked, opt.Capacity),
			map[string]string{"option_id": opt.ID})
	}

	others, err := l.store.GetActiveAnswersForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user answers: %w", err)
	}
	for _, a := range others {
		if a.OptionID == optionID {
			continue
		}
		other, err := l.store.GetOption(a.OptionID)
		if err != nil {
			return nil, err
		}
		snap.OtherAnswers = append(snap.OtherAnswers, a)
		snap.OtherOptions[other.ID] = other
	}

	campaigns, err := l.store.GetAllCampaigns(false)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}
	snap.Campaigns = campaign.NewEngine(campaigns)

	intent, err := l.store.GetIntent(optionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}
	if intent != nil && !intent.Expired(snap.Now, l.intentTTL) {
		snap.Intent = intent
	}

	return snap, nil
}
