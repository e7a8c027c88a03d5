package campaigns

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/models"
)

type CampaignListCmd struct {
	All bool `help:"Include deleted campaigns."`
}

func (c *CampaignListCmd) Run(ctx *cli.Context) error {
	campaigns, err := ctx.Store.GetAllCampaigns(c.All)
	if err != nil {
		return fmt.Errorf("failed to list campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		fmt.Println("No campaigns found.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, cli.HeaderStyle.Render("ID")+"\tNAME\tRULE\tWINDOW\tSTATUS")
	for _, camp := range campaigns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s to %s\t%s\n",
			camp.ID, camp.Name, rule(camp),
			camp.StartsAt.Local().Format("2006-01-02 15:04"),
			camp.EndsAt.Local().Format("2006-01-02 15:04"),
			status(camp, now))
	}
	return w.Flush()
}

func rule(c models.Campaign) string {
	if c.BlockOperator == models.BlockAlways {
		return string(c.BlockOperator)
	}
	return fmt.Sprintf("%s %d%%", c.BlockOperator, c.ThresholdPercent)
}

func status(c models.Campaign, now time.Time) string {
	switch {
	case c.DeletedAt != nil:
		return "deleted"
	case c.ActiveAt(now):
		return "active"
	case now.Before(c.StartsAt):
		return "scheduled"
	default:
		return "ended"
	}
}

type CampaignDeleteCmd struct {
	ID string `arg:"" help:"Campaign ID to delete."`
}

func (c *CampaignDeleteCmd) Run(ctx *cli.Context) error {
	camp, err := ctx.Store.GetCampaign(c.ID)
	if err != nil {
		return fmt.Errorf("failed to find campaign with ID %s: %w", c.ID, err)
	}
	ok, err := ctx.Confirm(fmt.Sprintf("Delete campaign %q?", camp.Name), "The campaign stops restricting admissions immediately. It can be restored later.")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Delete cancelled.")
		return nil
	}

	if err := ctx.Store.DeleteCampaign(c.ID); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	fmt.Printf("Deleted campaign: %s (ID: %s)\n", camp.Name, c.ID)
	return nil
}

type CampaignRestoreCmd struct {
	ID string `arg:"" help:"Campaign ID to restore."`
}

func (c *CampaignRestoreCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.RestoreCampaign(c.ID); err != nil {
		return fmt.Errorf("failed to restore campaign: %w", err)
	}
	fmt.Printf("Restored campaign: %s\n", c.ID)
	return nil
}
