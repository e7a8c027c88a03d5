package storage

import "github.com/julianstephens/seatwise/internal/models"

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Instances
	SaveInstance(models.Instance) error
	GetInstance(id string) (models.Instance, error)
	GetAllInstances() ([]models.Instance, error)

	// Options
	SaveOption(models.Option) error
	GetOption(id string) (models.Option, error)
	GetAllOptions() ([]models.Option, error)
	// SetOptionCancelled flips the administrative cancel flag. Answers are left untouched.
	SetOptionCancelled(id string, cancelled bool) error

	// Campaigns
	SaveCampaign(models.Campaign) error
	GetCampaign(id string) (models.Campaign, error)
	GetAllCampaigns(includeDeleted bool) ([]models.Campaign, error)
	DeleteCampaign(id string) error
	RestoreCampaign(id string) error

	// Profiles
	SaveProfile(models.Profile) error
	// GetProfile returns an empty profile, not an error, for users without stored fields.
	GetProfile(userID string) (models.Profile, error)

	// Ledger
	// GetAnswer returns the active answer for the pair, or nil when the user
	// holds nothing. More than one active answer is an invariant violation.
	GetAnswer(optionID, userID string) (*models.Answer, error)
	GetAnswersForOption(optionID string, includeDeleted bool) ([]models.Answer, error)
	GetActiveAnswersForUser(userID string) ([]models.Answer, error)
	Count(optionID string, statuses ...models.AnswerStatus) (int, error)
	GetOccupancy(optionID string) (models.Occupancy, error)
	// Transition is the only ledger mutator. It re-validates the request's
	// guard and expectation inside the same database transaction that writes
	// the answer and appends exactly one history entry.
	Transition(TransitionRequest) (models.HistoryEntry, error)
	GetHistory(optionID, userID string) ([]models.HistoryEntry, error)
	GetOptionHistory(optionID string) ([]models.HistoryEntry, error)

	// Intents
	GetIntent(optionID, userID string) (*models.Intent, error)
	SaveIntent(models.Intent) error
	ClearIntent(optionID, userID string) error

	// Utils
	GetConfigPath() string
}
