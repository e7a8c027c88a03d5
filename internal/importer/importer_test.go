package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/storage/sqlite"
)

const catalogJSON = `{
  "instances": [{"id": "spring", "name": "Spring term", "max_answers_per_user": 2}],
  "options": [
    {
      "id": "yoga",
      "instance_id": "spring",
      "title": "Yoga",
      "capacity": 2,
      "overbooking_capacity": 1,
      "cancellable": true,
      "starts_at": "2026-04-01T09:00:00Z",
      "ends_at": "2026-04-01T10:00:00Z",
      "profile_restrictions": [{"field": "role", "operator": "contains_any", "values": ["staff", "student"]}]
    }
  ],
  "campaigns": [
    {
      "id": "staff-first",
      "name": "Staff first",
      "starts_at": "2026-03-01T00:00:00Z",
      "ends_at": "2026-03-15T00:00:00Z",
      "block_operator": "block_above",
      "threshold_percent": 50,
      "population_filter": {"profile_field": "role", "operator": "contains_none", "values": ["staff"]}
    }
  ],
  "profiles": [{"user_id": "alice", "fields": {"role": ["staff"]}}]
}`

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	return path
}

func TestImportFile(t *testing.T) {
	store := setupStore(t)
	im := New(store)

	sum, err := im.ImportFile(writeCatalog(t, catalogJSON))
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if sum.Instances != 1 || sum.Options != 1 || sum.Campaigns != 1 || sum.Profiles != 1 {
		t.Errorf("unexpected summary: %s", sum)
	}

	opt, err := store.GetOption("yoga")
	if err != nil {
		t.Fatalf("GetOption() error = %v", err)
	}
	if opt.Capacity != 2 || opt.OverbookingCapacity != 1 || opt.InstanceID != "spring" {
		t.Errorf("option not stored as imported: %+v", opt)
	}
	if len(opt.ProfileRestrictions) != 1 || !opt.ProfileRestrictions[0].Values.Has("student") {
		t.Errorf("profile restrictions lost: %+v", opt.ProfileRestrictions)
	}

	camp, err := store.GetCampaign("staff-first")
	if err != nil {
		t.Fatalf("GetCampaign() error = %v", err)
	}
	if camp.PopulationFilter == nil || !camp.PopulationFilter.Values.Has("staff") {
		t.Errorf("population filter lost: %+v", camp.PopulationFilter)
	}

	profile, err := store.GetProfile("alice")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if !profile.Field("role").Has("staff") {
		t.Errorf("profile not stored: %+v", profile)
	}
}

func TestImportKeepsCancelFlag(t *testing.T) {
	store := setupStore(t)
	im := New(store)
	path := writeCatalog(t, catalogJSON)

	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if err := store.SetOptionCancelled("yoga", true); err != nil {
		t.Fatalf("SetOptionCancelled() error = %v", err)
	}
	if _, err := im.ImportFile(path); err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	opt, err := store.GetOption("yoga")
	if err != nil {
		t.Fatalf("GetOption() error = %v", err)
	}
	if !opt.Cancelled {
		t.Error("re-import should not restore a cancelled option")
	}
}

func TestImportRejectsInvalidCatalog(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", `{"options": [{"id": "x", "title": "X", "seats": 3}]}`},
		{"malformed", `{"options": [`},
		{"empty", `{}`},
		{"unknown instance", `{"options": [{"id": "x", "title": "X", "instance_id": "nope"}]}`},
		{"inverted campaign", `{"campaigns": [{"id": "c", "name": "C", "starts_at": "2026-03-02T00:00:00Z", "ends_at": "2026-03-01T00:00:00Z", "block_operator": "block_always"}]}`},
		{"two documents", `{"profiles": [{"user_id": "a"}]} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			_, err := New(store).ImportFile(writeCatalog(t, tt.content))
			if !apperrors.IsConfiguration(err) {
				t.Fatalf("ImportFile() error = %v, want configuration error", err)
			}

			opts, err := store.GetAllOptions()
			if err != nil {
				t.Fatalf("GetAllOptions() error = %v", err)
			}
			if len(opts) != 0 {
				t.Errorf("rejected catalog wrote %d option(s)", len(opts))
			}
		})
	}
}

func TestImportValidatesBeforeWriting(t *testing.T) {
	store := setupStore(t)
	content := strings.Replace(catalogJSON, `"threshold_percent": 50`, `"threshold_percent": 150`, 1)

	if _, err := New(store).ImportFile(writeCatalog(t, content)); err == nil {
		t.Fatal("expected import to fail")
	}

	instances, err := store.GetAllInstances()
	if err != nil {
		t.Fatalf("GetAllInstances() error = %v", err)
	}
	if len(instances) != 0 {
		t.Errorf("instances written before validation failed: %v", instances)
	}
}
