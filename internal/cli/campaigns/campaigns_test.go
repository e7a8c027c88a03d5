package campaigns

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage/sqlite"
)

func setupContext(t *testing.T, campaigns ...models.Campaign) *cli.Context {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, c := range campaigns {
		if err := store.SaveCampaign(c); err != nil {
			t.Fatal(err)
		}
	}
	return &cli.Context{Store: store, AssumeYes: true}
}

func TestRuleAndStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(-time.Hour)
	window := func(from, to time.Duration) models.Campaign {
		return models.Campaign{StartsAt: now.Add(from), EndsAt: now.Add(to), BlockOperator: models.BlockAbove, ThresholdPercent: 30}
	}

	tests := []struct {
		name       string
		campaign   models.Campaign
		wantRule   string
		wantStatus string
	}{
		{"active threshold", window(-time.Hour, time.Hour), "block_above 30%", "active"},
		{"scheduled", window(time.Hour, 2*time.Hour), "block_above 30%", "scheduled"},
		{"ended at boundary", window(-2*time.Hour, 0), "block_above 30%", "ended"},
		{
			name:       "deleted always",
			campaign:   models.Campaign{StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), BlockOperator: models.BlockAlways, DeletedAt: &deleted},
			wantRule:   "block_always",
			wantStatus: "deleted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule(tt.campaign); got != tt.wantRule {
				t.Errorf("rule() = %q, want %q", got, tt.wantRule)
			}
			if got := status(tt.campaign, now); got != tt.wantStatus {
				t.Errorf("status() = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestDeleteAndRestoreCommands(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ctx := setupContext(t, models.Campaign{
		ID:               "exam-week",
		Name:             "Exam week",
		StartsAt:         now.Add(-time.Hour),
		EndsAt:           now.Add(time.Hour),
		BlockOperator:    models.BlockAbove,
		ThresholdPercent: 50,
	})

	if err := (&CampaignDeleteCmd{ID: "exam-week"}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	active, err := ctx.Store.GetAllCampaigns(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("expected no live campaigns after delete, got %d", len(active))
	}
	if err := (&CampaignListCmd{All: true}).Run(ctx); err != nil {
		t.Errorf("list failed: %v", err)
	}

	if err := (&CampaignRestoreCmd{ID: "exam-week"}).Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if active, _ = ctx.Store.GetAllCampaigns(false); len(active) != 1 {
		t.Errorf("expected the campaign back after restore, got %d", len(active))
	}

	if err := (&CampaignDeleteCmd{ID: "missing"}).Run(ctx); err == nil {
		t.Error("deleting an unknown campaign should fail")
	}
}
