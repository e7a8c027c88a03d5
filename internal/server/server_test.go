package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/seatwise/internal/booking"
	"github.com/julianstephens/seatwise/internal/condition"
	"github.com/julianstephens/seatwise/internal/decision"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/lock"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
	"github.com/julianstephens/seatwise/internal/storage/sqlite"
)

func setupServer(t *testing.T, opts Options, options ...models.Option) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for _, o := range options {
		if err := store.SaveOption(o); err != nil {
			t.Fatalf("SaveOption failed: %v", err)
		}
	}

	engine := booking.NewEngine(store, lock.NewLocalLocker(5*time.Second), booking.Options{})
	ts := httptest.NewServer(New(engine, opts).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func do(t *testing.T, method, url string, body any, dst any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s: Content-Type = %q", method, url, ct)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestBookingFlowOverHTTP(t *testing.T) {
	ts, _ := setupServer(t, Options{}, models.Option{ID: "yoga", Title: "Yoga", Capacity: 1, Cancellable: true})
	base := ts.URL + "/options/yoga/users/alice"

	var res condition.Result
	if status := do(t, http.MethodGet, base+"/decision", nil, &res); status != http.StatusOK {
		t.Fatalf("decision status = %d", status)
	}
	if res.Code != decision.BookItButton || !res.Available {
		t.Errorf("decision = %+v, want available %s", res, decision.BookItButton)
	}

	var out booking.Outcome
	do(t, http.MethodPost, base+"/act", nil, &out)
	if out.Code != decision.ConfirmBookIt {
		t.Errorf("first act = %s, want %s", out.Code, decision.ConfirmBookIt)
	}
	out = booking.Outcome{}
	do(t, http.MethodPost, base+"/act", nil, &out)
	if out.Code != decision.AlreadyBooked || out.Entry == nil {
		t.Errorf("second act = %+v, want %s with ledger entry", out, decision.AlreadyBooked)
	}

	res = condition.Result{}
	do(t, http.MethodGet, ts.URL+"/options/yoga/users/bob/decision?hard=1", nil, &res)
	if res.Code != decision.FullyBooked {
		t.Errorf("bob decision = %s, want %s", res.Code, decision.FullyBooked)
	}

	var history []models.HistoryEntry
	do(t, http.MethodGet, base+"/history", nil, &history)
	if len(history) != 1 || history[0].NewStatus != models.StatusBooked {
		t.Errorf("history = %+v, want one booked entry", history)
	}
}

func TestDecisionErrors(t *testing.T) {
	ts, _ := setupServer(t, Options{}, models.Option{ID: "yoga", Title: "Yoga", Capacity: 1})

	var body errorBody
	if status := do(t, http.MethodGet, ts.URL+"/options/missing/users/alice/decision", nil, &body); status != http.StatusNotFound {
		t.Errorf("unknown option status = %d, want 404", status)
	}
	if body.Code != "not_found" {
		t.Errorf("error code = %q, want not_found", body.Code)
	}

	if status := do(t, http.MethodGet, ts.URL+"/options/yoga/users/alice/decision?hard=maybe", nil, nil); status != http.StatusBadRequest {
		t.Errorf("bad hard flag status = %d, want 400", status)
	}
}

func TestAdminTransitionOverHTTP(t *testing.T) {
	ts, _ := setupServer(t, Options{}, models.Option{ID: "yoga", Title: "Yoga", Capacity: 1})
	url := func(user string) string { return ts.URL + "/options/yoga/users/" + user + "/transition" }

	if status := do(t, http.MethodPost, url("alice"), transitionRequest{Status: models.StatusBooked}, nil); status != http.StatusBadRequest {
		t.Errorf("missing actor status = %d, want 400", status)
	}
	if status := do(t, http.MethodPost, url("alice"), transitionRequest{Status: "vip", ActorID: "admin"}, nil); status != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", status)
	}

	var entry models.HistoryEntry
	if status := do(t, http.MethodPost, url("alice"), transitionRequest{Status: models.StatusBooked, ActorID: "admin"}, &entry); status != http.StatusOK {
		t.Fatalf("transition status = %d", status)
	}
	if entry.ActorID != "admin" || entry.NewStatus != models.StatusBooked {
		t.Errorf("entry = %+v", entry)
	}

	var body errorBody
	if status := do(t, http.MethodPost, url("bob"), transitionRequest{Status: models.StatusBooked, ActorID: "admin"}, &body); status != http.StatusConflict {
		t.Errorf("over capacity status = %d, want 409", status)
	}
	if body.Code != "capacity_exhausted" {
		t.Errorf("error code = %q, want capacity_exhausted", body.Code)
	}

	if status := do(t, http.MethodPost, url("carol"), transitionRequest{Status: models.StatusDeleted, ActorID: "admin"}, nil); status != http.StatusBadRequest {
		t.Errorf("illegal transition status = %d, want 400", status)
	}
}

func TestCancelAndRestoreOverHTTP(t *testing.T) {
	ts, _ := setupServer(t, Options{}, models.Option{ID: "yoga", Title: "Yoga", Capacity: 3})

	if status := do(t, http.MethodPost, ts.URL+"/options/yoga/cancel", adminRequest{}, nil); status != http.StatusBadRequest {
		t.Errorf("cancel without actor = %d, want 400", status)
	}
	if status := do(t, http.MethodPost, ts.URL+"/options/yoga/cancel", adminRequest{ActorID: "admin"}, nil); status != http.StatusOK {
		t.Fatalf("cancel status = %d", status)
	}

	var res condition.Result
	do(t, http.MethodGet, ts.URL+"/options/yoga/users/alice/decision", nil, &res)
	if res.Code != decision.IsCancelled {
		t.Errorf("decision after cancel = %s, want %s", res.Code, decision.IsCancelled)
	}

	do(t, http.MethodPost, ts.URL+"/options/yoga/restore", adminRequest{ActorID: "admin"}, nil)
	res = condition.Result{}
	do(t, http.MethodGet, ts.URL+"/options/yoga/users/alice/decision", nil, &res)
	if res.Code != decision.BookItButton {
		t.Errorf("decision after restore = %s, want %s", res.Code, decision.BookItButton)
	}

	if status := do(t, http.MethodPost, ts.URL+"/options/missing/cancel", adminRequest{ActorID: "admin"}, nil); status != http.StatusNotFound {
		t.Errorf("cancel unknown option = %d, want 404", status)
	}
}

func TestWaitlistOverHTTP(t *testing.T) {
	ts, store := setupServer(t, Options{}, models.Option{ID: "yoga", Title: "Yoga", Capacity: 1, OverbookingCapacity: 2})
	for _, u := range []string{"alice", "bob", "carol"} {
		to := models.StatusWaitlisted
		if u == "alice" {
			to = models.StatusBooked
		}
		if _, err := store.Transition(storage.TransitionRequest{OptionID: "yoga", UserID: u, To: to, ActorID: "admin"}); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
	}

	var waitlist []models.Answer
	do(t, http.MethodGet, ts.URL+"/options/yoga/waitlist", nil, &waitlist)
	if len(waitlist) != 2 || waitlist[0].UserID != "bob" || waitlist[1].UserID != "carol" {
		t.Errorf("waitlist = %+v, want bob then carol", waitlist)
	}

	var history []models.HistoryEntry
	do(t, http.MethodGet, ts.URL+"/options/yoga/history", nil, &history)
	if len(history) != 3 {
		t.Errorf("option history has %d entries, want 3", len(history))
	}
}

func TestActIsRateLimitedPerUser(t *testing.T) {
	ts, _ := setupServer(t, Options{RateLimit: 0.001, RateBurst: 1}, models.Option{ID: "yoga", Title: "Yoga", Capacity: 5})

	if status := do(t, http.MethodPost, ts.URL+"/options/yoga/users/alice/act", nil, nil); status != http.StatusOK {
		t.Fatalf("first act = %d, want 200", status)
	}
	var body errorBody
	if status := do(t, http.MethodPost, ts.URL+"/options/yoga/users/alice/act", nil, &body); status != http.StatusTooManyRequests {
		t.Errorf("second act = %d, want 429", status)
	}
	if body.Code != "rate_limited" {
		t.Errorf("error code = %q", body.Code)
	}
	if status := do(t, http.MethodPost, ts.URL+"/options/yoga/users/bob/act", nil, nil); status != http.StatusOK {
		t.Errorf("other user act = %d, want 200", status)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"contention", apperrors.Contention(apperrors.CodeLockTimeout, "busy", nil), http.StatusConflict},
		{"configuration", apperrors.Configuration(apperrors.CodeInvalidOption, "bad", nil), http.StatusUnprocessableEntity},
		{"invariant", apperrors.Invariant(apperrors.CodeDuplicateActiveSeat, "two seats", nil), http.StatusInternalServerError},
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"capacity", storage.ErrCapacityExhausted, http.StatusConflict},
		{"unknown", http.ErrHandlerTimeout, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRateLimiterEvictsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("alice") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("alice") {
		t.Fatal("second immediate request should be throttled")
	}

	now = now.Add(idleLimiterTTL + time.Second)
	rl.Allow("bob")
	rl.mu.Lock()
	_, kept := rl.visitors["alice"]
	rl.mu.Unlock()
	if kept {
		t.Error("idle limiter should have been evicted")
	}
}
