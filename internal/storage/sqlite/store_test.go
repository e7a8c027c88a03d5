package sqlite

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

var _ storage.Provider = (*Store)(nil)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedOption(t *testing.T, store *Store, o models.Option) models.Option {
	t.Helper()
	if o.Title == "" {
		o.Title = o.ID
	}
	if err := store.SaveOption(o); err != nil {
		t.Fatalf("SaveOption failed: %v", err)
	}
	return o
}

func book(t *testing.T, store *Store, optionID, userID string, to models.AnswerStatus) models.HistoryEntry {
	t.Helper()
	entry, err := store.Transition(storage.TransitionRequest{OptionID: optionID, UserID: userID, To: to, ActorID: userID})
	if err != nil {
		t.Fatalf("Transition(%s, %s, %s) failed: %v", optionID, userID, to, err)
	}
	return entry
}

func TestLoadRequiresInit(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := store.Load(); err == nil {
		t.Fatal("expected Load to fail before Init")
	}
}

func TestReopenValidatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store := NewStore(path)
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	store.Close()

	reopened := NewStore(path)
	defer reopened.Close()
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reopened.GetConfigPath() != path {
		t.Errorf("GetConfigPath = %q, want %q", reopened.GetConfigPath(), path)
	}
}

func TestOptionRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	starts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ends := starts.Add(2 * time.Hour)

	want := models.Option{
		ID:                  "yoga",
		InstanceID:          "spring",
		Title:               "Morning yoga",
		Capacity:            10,
		OverbookingCapacity: 2,
		StartsAt:            &starts,
		EndsAt:              &ends,
		Cancellable:         true,
		Price:               12.5,
		ProfileRestrictions: []models.ProfileRestriction{
			{Field: "city", Operator: models.MatchEquals, Values: models.NewStringSet("vienna")},
		},
		CustomAttributes: map[string]string{"room": "A"},
	}
	seedOption(t, store, want)

	got, err := store.GetOption("yoga")
	if err != nil {
		t.Fatalf("GetOption failed: %v", err)
	}
	if got.Title != want.Title || got.Capacity != 10 || got.OverbookingCapacity != 2 || !got.Cancellable || got.Price != 12.5 {
		t.Errorf("unexpected option: %+v", got)
	}
	if got.StartsAt == nil || !got.StartsAt.Equal(starts) || got.BookingOpensAt != nil {
		t.Errorf("timestamps not preserved: %+v", got)
	}
	if len(got.ProfileRestrictions) != 1 || !got.ProfileRestrictions[0].Values.Has("vienna") {
		t.Errorf("restrictions not preserved: %+v", got.ProfileRestrictions)
	}
	if got.CustomAttributes["room"] != "A" {
		t.Errorf("attributes not preserved: %+v", got.CustomAttributes)
	}

	if err := store.SetOptionCancelled("yoga", true); err != nil {
		t.Fatalf("SetOptionCancelled failed: %v", err)
	}
	got, _ = store.GetOption("yoga")
	if !got.Cancelled {
		t.Error("expected option to be cancelled")
	}

	if _, err := store.GetOption("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetOptionCancelled("nope", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	seedOption(t, store, models.Option{ID: "o1", Capacity: 5})

	first := book(t, store, "o1", "u1", models.StatusBooked)
	if first.OldStatus != "" || first.NewStatus != models.StatusBooked {
		t.Errorf("unexpected first entry: %+v", first)
	}

	answer, err := store.GetAnswer("o1", "u1")
	if err != nil || answer == nil || answer.Status != models.StatusBooked {
		t.Fatalf("expected booked answer, got %+v (%v)", answer, err)
	}

	del := book(t, store, "o1", "u1", models.StatusDeleted)
	if del.OldStatus != models.StatusBooked || del.AnswerID != first.AnswerID {
		t.Errorf("unexpected delete entry: %+v", del)
	}

	answer, err = store.GetAnswer("o1", "u1")
	if err != nil || answer != nil {
		t.Fatalf("expected no active answer, got %+v (%v)", answer, err)
	}

	// Rebooking creates a fresh answer; the old one stays deleted.
	again := book(t, store, "o1", "u1", models.StatusWaitlisted)
	if again.AnswerID == first.AnswerID {
		t.Error("expected a new answer row on rebooking")
	}
	gone := book(t, store, "o1", "u1", models.StatusDeleted)
	if gone.NewStatus != models.StatusWaitlistDeleted {
		t.Errorf("waitlisted answer should become waitlist_deleted, got %s", gone.NewStatus)
	}

	history, err := store.GetHistory("o1", "u1")
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Seq <= history[i-1].Seq {
			t.Errorf("history not ordered by seq: %+v", history)
		}
	}

	all, err := store.GetAnswersForOption("o1", true)
	if err != nil {
		t.Fatalf("GetAnswersForOption failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 answer rows, got %d", len(all))
	}
}

func TestTransitionRejections(t *testing.T) {
	store := setupTestStore(t)
	seedOption(t, store, models.Option{ID: "o1", Capacity: 1})

	if _, err := store.Transition(storage.TransitionRequest{OptionID: "missing", UserID: "u1", To: models.StatusBooked}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown option, got %v", err)
	}
	if _, err := store.Transition(storage.TransitionRequest{OptionID: "o1", UserID: "u1", To: models.StatusDeleted}); !errors.Is(err, storage.ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition deleting nothing, got %v", err)
	}
	if _, err := store.Transition(storage.TransitionRequest{OptionID: "o1", UserID: "u1", To: "bogus"}); !apperrors.IsConfiguration(err) {
		t.Errorf("expected configuration error for unknown status, got %v", err)
	}

	book(t, store, "o1", "u1", models.StatusBooked)
	if _, err := store.Transition(storage.TransitionRequest{OptionID: "o1", UserID: "u1", To: models.StatusBooked}); !errors.Is(err, storage.ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition for same status, got %v", err)
	}

	guard := &storage.CapacityGuard{Statuses: []models.AnswerStatus{models.StatusBooked}, Limit: 1}
	_, err := store.Transition(storage.TransitionRequest{OptionID: "o1", UserID: "u2", To: models.StatusBooked, Guard: guard})
	if !errors.Is(err, storage.ErrCapacityExhausted) {
		t.Errorf("expected ErrCapacityExhausted, got %v", err)
	}

	// The subject's own seat is excluded from the guarded count.
	if _, err := store.Transition(storage.TransitionRequest{OptionID: "o1", UserID: "u1", To: models.StatusWaitlisted, Guard: guard}); err != nil {
		t.Errorf("guard should exclude the subject's answer: %v", err)
	}

	_, err = store.Transition(storage.TransitionRequest{
		OptionID: "o1", UserID: "u1", To: models.StatusDeleted, Expect: storage.Expect(models.StatusBooked),
	})
	if !apperrors.IsRetryable(err) {
		t.Errorf("expected contention on stale expectation, got %v", err)
	}

	history, _ := store.GetHistory("o1", "u2")
	if len(history) != 0 {
		t.Errorf("rejected transitions must not append history, got %d entries", len(history))
	}
}

func TestConcurrentGuardedTransitions(t *testing.T) {
	store := setupTestStore(t)
	seedOption(t, store, models.Option{ID: "o1", Capacity: 3})
	guard := &storage.CapacityGuard{Statuses: []models.AnswerStatus{models.StatusBooked}, Limit: 3}

	var wg sync.WaitGroup
	var mu sync.Mutex
	booked := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Transition(storage.TransitionRequest{
				OptionID: "o1", UserID: "user-" + string(rune('a'+i)), To: models.StatusBooked, Guard: guard,
			})
			if err == nil {
				mu.Lock()
				booked++
				mu.Unlock()
			} else if !errors.Is(err, storage.ErrCapacityExhausted) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if booked != 3 {
		t.Errorf("expected exactly 3 bookings, got %d", booked)
	}
	n, err := store.Count("o1", models.StatusBooked)
	if err != nil || n != 3 {
		t.Errorf("Count = %d (%v), want 3", n, err)
	}
}

func TestOccupancyAndUserAnswers(t *testing.T) {
	store := setupTestStore(t)
	seedOption(t, store, models.Option{ID: "o1", Capacity: 2, OverbookingCapacity: 2})
	seedOption(t, store, models.Option{ID: "o2"})

	book(t, store, "o1", "u1", models.StatusBooked)
	book(t, store, "o1", "u2", models.StatusBooked)
	book(t, store, "o1", "u3", models.StatusWaitlisted)
	book(t, store, "o1", "u4", models.StatusPendingApproval)
	book(t, store, "o2", "u1", models.StatusBooked)

	occ, err := store.GetOccupancy("o1")
	if err != nil {
		t.Fatalf("GetOccupancy failed: %v", err)
	}
	if occ != (models.Occupancy{Booked: 2, Waitlisted: 1, PendingApproval: 1}) {
		t.Errorf("unexpected occupancy: %+v", occ)
	}

	answers, err := store.GetActiveAnswersForUser("u1")
	if err != nil {
		t.Fatalf("GetActiveAnswersForUser failed: %v", err)
	}
	if len(answers) != 2 {
		t.Errorf("expected 2 active answers for u1, got %d", len(answers))
	}

	optionHistory, err := store.GetOptionHistory("o1")
	if err != nil || len(optionHistory) != 4 {
		t.Errorf("expected 4 option history entries, got %d (%v)", len(optionHistory), err)
	}
}

func TestCampaigns(t *testing.T) {
	store := setupTestStore(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := models.Campaign{
		ID:               "c1",
		Name:             "early bird",
		StartsAt:         start,
		EndsAt:           start.Add(24 * time.Hour),
		BlockOperator:    models.BlockAbove,
		ThresholdPercent: 50,
		OptionFilter:     &models.OptionFilter{Attribute: "room", Operator: models.MatchEquals, Value: "A"},
		PopulationFilter: &models.PopulationFilter{ProfileField: "role", Operator: models.MatchContainsNone, Values: models.NewStringSet("staff")},
	}
	if err := store.SaveCampaign(c); err != nil {
		t.Fatalf("SaveCampaign failed: %v", err)
	}

	got, err := store.GetCampaign("c1")
	if err != nil {
		t.Fatalf("GetCampaign failed: %v", err)
	}
	if got.OptionFilter == nil || got.OptionFilter.Value != "A" || got.PopulationFilter == nil || !got.PopulationFilter.Values.Has("staff") {
		t.Errorf("filters not preserved: %+v", got)
	}
	if !got.StartsAt.Equal(start) || got.ThresholdPercent != 50 {
		t.Errorf("unexpected campaign: %+v", got)
	}

	if err := store.DeleteCampaign("c1"); err != nil {
		t.Fatalf("DeleteCampaign failed: %v", err)
	}
	live, _ := store.GetAllCampaigns(false)
	all, _ := store.GetAllCampaigns(true)
	if len(live) != 0 || len(all) != 1 || all[0].DeletedAt == nil {
		t.Errorf("soft delete not applied: live=%d all=%d", len(live), len(all))
	}

	if err := store.RestoreCampaign("c1"); err != nil {
		t.Fatalf("RestoreCampaign failed: %v", err)
	}
	live, _ = store.GetAllCampaigns(false)
	if len(live) != 1 {
		t.Errorf("expected restored campaign, got %d", len(live))
	}
	if err := store.DeleteCampaign("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProfilesAndInstances(t *testing.T) {
	store := setupTestStore(t)

	empty, err := store.GetProfile("ghost")
	if err != nil || len(empty.Fields) != 0 {
		t.Errorf("expected empty profile, got %+v (%v)", empty, err)
	}

	p := models.Profile{UserID: "u1", Fields: map[string]models.StringSet{
		"city": models.NewStringSet("vienna"),
		"tags": models.NewStringSet("a", "b"),
	}}
	if err := store.SaveProfile(p); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	p.Fields = map[string]models.StringSet{"city": models.NewStringSet("graz")}
	if err := store.SaveProfile(p); err != nil {
		t.Fatalf("SaveProfile (replace) failed: %v", err)
	}
	got, err := store.GetProfile("u1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if len(got.Fields) != 1 || !got.Field("city").Has("graz") {
		t.Errorf("profile not replaced: %+v", got)
	}

	if err := store.SaveInstance(models.Instance{ID: "i1", Name: "Spring", MaxAnswersPerUser: 2}); err != nil {
		t.Fatalf("SaveInstance failed: %v", err)
	}
	inst, err := store.GetInstance("i1")
	if err != nil || inst.MaxAnswersPerUser != 2 {
		t.Errorf("unexpected instance %+v (%v)", inst, err)
	}
	if _, err := store.GetInstance("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	all, _ := store.GetAllInstances()
	if len(all) != 1 {
		t.Errorf("expected 1 instance, got %d", len(all))
	}
}

func TestIntents(t *testing.T) {
	store := setupTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := store.GetIntent("o1", "u1")
	if err != nil || got != nil {
		t.Fatalf("expected no intent, got %+v (%v)", got, err)
	}

	if err := store.SaveIntent(models.Intent{OptionID: "o1", UserID: "u1", Kind: models.IntentConfirmBook, CreatedAt: at}); err != nil {
		t.Fatalf("SaveIntent failed: %v", err)
	}
	if err := store.SaveIntent(models.Intent{OptionID: "o1", UserID: "u1", Kind: models.IntentConfirmCancel, CreatedAt: at}); err != nil {
		t.Fatalf("SaveIntent (replace) failed: %v", err)
	}
	got, err = store.GetIntent("o1", "u1")
	if err != nil || got == nil || got.Kind != models.IntentConfirmCancel || !got.CreatedAt.Equal(at) {
		t.Fatalf("unexpected intent %+v (%v)", got, err)
	}

	if err := store.ClearIntent("o1", "u1"); err != nil {
		t.Fatalf("ClearIntent failed: %v", err)
	}
	got, _ = store.GetIntent("o1", "u1")
	if got != nil {
		t.Error("expected intent to be cleared")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	store := setupTestStore(t)
	seedOption(t, store, models.Option{ID: "o1", Capacity: 5})

	insertAnswer := func(id string) error {
		_, err := store.db.Exec("INSERT INTO answers ("+answerColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			id, "o1", "alice", string(models.StatusBooked), "2026-06-01T09:00:00Z", "2026-06-01T09:00:00Z")
		return err
	}
	if err := insertAnswer("a1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	tests := []struct {
		name string
		exec func() error
		want bool
	}{
		{
			name: "second active answer",
			exec: func() error { return insertAnswer("a2") },
			want: true,
		},
		{
			name: "not null",
			exec: func() error {
				_, err := store.db.Exec("INSERT INTO options (id, title) VALUES (?, NULL)", "o2")
				return err
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.exec()
			if err == nil {
				t.Fatal("expected a constraint error")
			}
			if got := isUniqueViolation(err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", err, got, tt.want)
			}
		})
	}
}
