package options

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/models"
)

type OptionListCmd struct{}

func (c *OptionListCmd) Run(ctx *cli.Context) error {
	options, err := ctx.Store.GetAllOptions()
	if err != nil {
		return fmt.Errorf("failed to list options: %w", err)
	}
	if len(options) == 0 {
		fmt.Println("No options found. Use 'seatwise import' to load some.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, cli.HeaderStyle.Render("ID")+"\tTITLE\tBOOKED\tWAITLIST\tSTATE")
	for _, opt := range options {
		occ, err := ctx.Store.GetOccupancy(opt.ID)
		if err != nil {
			return fmt.Errorf("failed to read occupancy of %s: %w", opt.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", opt.ID, opt.Title, seats(occ.Booked, opt.Capacity), seats(occ.Waitlisted, opt.OverbookingCapacity), state(opt))
	}
	return w.Flush()
}

func seats(used, limit int) string {
	if limit == 0 {
		return fmt.Sprintf("%d/∞", used)
	}
	return fmt.Sprintf("%d/%d", used, limit)
}

func state(opt models.Option) string {
	var flags []string
	if opt.Cancelled {
		flags = append(flags, "cancelled")
	}
	if opt.Disabled {
		flags = append(flags, "disabled")
	}
	if opt.RequiresConfirmation {
		flags = append(flags, "approval")
	}
	if len(flags) == 0 {
		return "open"
	}
	return strings.Join(flags, ",")
}

type OptionShowCmd struct {
	ID string `arg:"" help:"Option ID."`
}

func (c *OptionShowCmd) Run(ctx *cli.Context) error {
	opt, err := ctx.Store.GetOption(c.ID)
	if err != nil {
		return err
	}
	occ, err := ctx.Store.GetOccupancy(opt.ID)
	if err != nil {
		return err
	}

	fmt.Println(cli.HeaderStyle.Render(opt.Title))
	fmt.Printf("ID:           %s\n", opt.ID)
	if opt.InstanceID != "" {
		fmt.Printf("Instance:     %s\n", opt.InstanceID)
	}
	fmt.Printf("Booked:       %s (%.0f%%)\n", seats(occ.Booked, opt.Capacity), occ.Percent(opt))
	fmt.Printf("Waitlist:     %s\n", seats(occ.Waitlisted, opt.OverbookingCapacity))
	fmt.Printf("Pending:      %d\n", occ.PendingApproval)
	fmt.Printf("State:        %s\n", state(opt))
	fmt.Printf("Cancellable:  %t\n", opt.Cancellable)
	if opt.BookingOpensAt != nil || opt.BookingClosesAt != nil {
		fmt.Printf("Booking:      %s to %s\n", formatTime(opt.BookingOpensAt), formatTime(opt.BookingClosesAt))
	}
	if opt.StartsAt != nil {
		fmt.Printf("Schedule:     %s to %s\n", formatTime(opt.StartsAt), formatTime(opt.EndsAt))
	}
	if opt.Price > 0 {
		fmt.Printf("Price:        %.2f\n", opt.Price)
	}
	for _, r := range opt.ProfileRestrictions {
		fmt.Printf("Restriction:  %s %s %s\n", r.Field, r.Operator, r.Values)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}

type OptionCancelCmd struct {
	ID    string `arg:"" help:"Option ID to cancel."`
	Actor string `help:"Administrator recorded as the actor." env:"SEATWISE_ACTOR" default:"admin"`
}

func (c *OptionCancelCmd) Run(ctx *cli.Context) error {
	opt, err := ctx.Store.GetOption(c.ID)
	if err != nil {
		return err
	}
	ok, err := ctx.Confirm(fmt.Sprintf("Cancel option %q?", opt.Title), "Seats are kept, but every user will see the option as cancelled.")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancel aborted.")
		return nil
	}

	ctx.PerformAutomaticBackup()
	if err := ctx.Engine.CancelOption(context.Background(), c.ID, c.Actor); err != nil {
		return err
	}
	fmt.Printf("Cancelled option: %s (ID: %s)\n", opt.Title, opt.ID)
	return nil
}

type OptionRestoreCmd struct {
	ID    string `arg:"" help:"Option ID to restore."`
	Actor string `help:"Administrator recorded as the actor." env:"SEATWISE_ACTOR" default:"admin"`
}

func (c *OptionRestoreCmd) Run(ctx *cli.Context) error {
	if err := ctx.Engine.RestoreOption(context.Background(), c.ID, c.Actor); err != nil {
		return err
	}
	fmt.Printf("Restored option: %s\n", c.ID)
	return nil
}
