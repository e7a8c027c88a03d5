package campaign

import (
	"testing"
	"time"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func activeCampaign(id string, op models.BlockOperator, threshold int) models.Campaign {
	return models.Campaign{
		ID:               id,
		Name:             id,
		StartsAt:         now.Add(-time.Hour),
		EndsAt:           now.Add(time.Hour),
		BlockOperator:    op,
		ThresholdPercent: threshold,
	}
}

func profile(field, raw string) models.Profile {
	return models.Profile{UserID: "u1", Fields: map[string]models.StringSet{field: models.ParseStringSet(raw)}}
}

func TestThresholdOperators(t *testing.T) {
	opt := models.Option{ID: "opt-1", Capacity: 10}
	tests := []struct {
		name      string
		op        models.BlockOperator
		threshold int
		occupancy float64
		want      bool
	}{
		{"above: under threshold", models.BlockAbove, 50, 40, false},
		{"above: at threshold", models.BlockAbove, 50, 50, true},
		{"above: over threshold", models.BlockAbove, 30, 40, true},
		{"below: under threshold", models.BlockBelow, 50, 40, true},
		{"below: at threshold", models.BlockBelow, 50, 50, false},
		{"always", models.BlockAlways, 0, 0, true},
		{"always ignores occupancy", models.BlockAlways, 100, 99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine([]models.Campaign{activeCampaign("c1", tt.op, tt.threshold)})
			blocked, id, err := e.EffectiveBlock(opt, models.Profile{}, tt.occupancy, now)
			if err != nil {
				t.Fatalf("EffectiveBlock() error = %v", err)
			}
			if blocked != tt.want {
				t.Errorf("EffectiveBlock() = %v, want %v", blocked, tt.want)
			}
			if blocked && id != "c1" {
				t.Errorf("blocking campaign = %q, want c1", id)
			}
		})
	}
}

// Raising the threshold of a block_above campaign above current occupancy
// must lift the block without any other change.
func TestThresholdMonotonicity(t *testing.T) {
	opt := models.Option{ID: "opt-1", Capacity: 10}
	c := activeCampaign("c1", models.BlockAbove, 30)

	blocked, _, err := NewEngine([]models.Campaign{c}).EffectiveBlock(opt, models.Profile{}, 40, now)
	if err != nil || !blocked {
		t.Fatalf("threshold 30 at 40%%: blocked=%v err=%v, want blocked", blocked, err)
	}

	c.ThresholdPercent = 50
	blocked, _, err = NewEngine([]models.Campaign{c}).EffectiveBlock(opt, models.Profile{}, 40, now)
	if err != nil || blocked {
		t.Fatalf("threshold 50 at 40%%: blocked=%v err=%v, want not blocked", blocked, err)
	}
}

func TestTimeWindow(t *testing.T) {
	opt := models.Option{ID: "opt-1"}
	c := activeCampaign("c1", models.BlockAlways, 0)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", c.StartsAt.Add(-time.Second), false},
		{"at start", c.StartsAt, true},
		{"inside", now, true},
		{"at end", c.EndsAt, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, _, err := NewEngine([]models.Campaign{c}).EffectiveBlock(opt, models.Profile{}, 0, tt.at)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if blocked != tt.want {
				t.Errorf("blocked = %v, want %v", blocked, tt.want)
			}
		})
	}
}

func TestOptionFilter(t *testing.T) {
	c := activeCampaign("c1", models.BlockAlways, 0)
	c.OptionFilter = &models.OptionFilter{Attribute: "room", Operator: models.MatchEquals, Value: "lab"}
	e := NewEngine([]models.Campaign{c})

	lab := models.Option{ID: "a", CustomAttributes: map[string]string{"room": "lab"}}
	hall := models.Option{ID: "b", CustomAttributes: map[string]string{"room": "hall"}}
	bare := models.Option{ID: "c"}

	if blocked, _, _ := e.EffectiveBlock(lab, models.Profile{}, 0, now); !blocked {
		t.Error("matching option should be blocked")
	}
	if blocked, _, _ := e.EffectiveBlock(hall, models.Profile{}, 0, now); blocked {
		t.Error("non-matching option should not be blocked")
	}
	if blocked, _, _ := e.EffectiveBlock(bare, models.Profile{}, 0, now); blocked {
		t.Error("option without the attribute should not be blocked")
	}
}

func TestPopulationFilter(t *testing.T) {
	opt := models.Option{ID: "opt-1", Capacity: 10}
	protect := activeCampaign("reserve-for-staff", models.BlockAbove, 50)
	protect.PopulationFilter = &models.PopulationFilter{
		ProfileField: "groups",
		Operator:     models.MatchContainsNone,
		Values:       models.NewStringSet("staff"),
	}
	e := NewEngine([]models.Campaign{protect})

	tests := []struct {
		name    string
		profile models.Profile
		want    bool
	}{
		{"student blocked", profile("groups", "students"), true},
		{"staff among many groups exempt", profile("groups", "students, staff"), false},
		{"no profile field is outside every group", models.Profile{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, _, err := e.EffectiveBlock(opt, tt.profile, 60, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if blocked != tt.want {
				t.Errorf("blocked = %v, want %v", blocked, tt.want)
			}
		})
	}
}

func TestAnyBlockingCampaignBlocks(t *testing.T) {
	opt := models.Option{ID: "opt-1", Capacity: 10}
	lenient := activeCampaign("a-lenient", models.BlockAbove, 90)
	strict := activeCampaign("b-strict", models.BlockAbove, 20)
	off := activeCampaign("c-expired", models.BlockAlways, 0)
	off.EndsAt = now.Add(-time.Minute)

	orders := [][]models.Campaign{
		{lenient, strict, off},
		{off, strict, lenient},
		{strict, off, lenient},
	}
	for _, campaigns := range orders {
		blocked, id, err := NewEngine(campaigns).EffectiveBlock(opt, models.Profile{}, 40, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !blocked || id != "b-strict" {
			t.Errorf("blocked=%v id=%q, want blocked by b-strict regardless of order", blocked, id)
		}
	}
}

func TestDeletedCampaignIgnored(t *testing.T) {
	c := activeCampaign("c1", models.BlockAlways, 0)
	deleted := now.Add(-time.Minute)
	c.DeletedAt = &deleted

	blocked, _, err := NewEngine([]models.Campaign{c}).EffectiveBlock(models.Option{ID: "x"}, models.Profile{}, 0, now)
	if err != nil || blocked {
		t.Errorf("deleted campaign applied: blocked=%v err=%v", blocked, err)
	}
}

func TestMisconfiguredCampaignFailsClosed(t *testing.T) {
	opt := models.Option{ID: "opt-1", Capacity: 10}
	tests := []struct {
		name   string
		mutate func(*models.Campaign)
	}{
		{"unknown block operator", func(c *models.Campaign) { c.BlockOperator = "block_sometimes" }},
		{"threshold out of range", func(c *models.Campaign) { c.ThresholdPercent = 120 }},
		{"set operator on option filter", func(c *models.Campaign) {
			c.OptionFilter = &models.OptionFilter{Attribute: "room", Operator: models.MatchContainsAny, Value: "lab"}
		}},
		{"value operator on population filter", func(c *models.Campaign) {
			c.PopulationFilter = &models.PopulationFilter{ProfileField: "groups", Operator: models.MatchContains}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCampaign("broken", models.BlockAbove, 50)
			tt.mutate(&c)
			blocked, _, err := NewEngine([]models.Campaign{c}).EffectiveBlock(opt, models.Profile{}, 10, now)
			if !apperrors.IsConfiguration(err) {
				t.Fatalf("error = %v, want configuration error", err)
			}
			if !blocked {
				t.Error("misconfigured campaign must fail closed")
			}
		})
	}
}
