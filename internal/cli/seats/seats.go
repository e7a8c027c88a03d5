package seats

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/models"
)

type EvaluateCmd struct {
	Option string `arg:"" help:"Option ID."`
	User   string `arg:"" help:"User ID."`
	Hard   bool   `help:"Only evaluate hard blocking conditions."`
}

func (c *EvaluateCmd) Run(ctx *cli.Context) error {
	res, err := ctx.Engine.Evaluate(context.Background(), c.Option, c.User, c.Hard)
	if err != nil {
		return err
	}
	fmt.Println(cli.RenderDecision(res))
	return nil
}

type ActCmd struct {
	Option string `arg:"" help:"Option ID."`
	User   string `arg:"" help:"User ID."`
}

func (c *ActCmd) Run(ctx *cli.Context) error {
	out, err := ctx.Engine.Act(context.Background(), c.Option, c.User)
	if err != nil {
		return err
	}
	fmt.Println(cli.RenderDecision(out.Result))
	if out.Entry != nil {
		fmt.Printf("  ledger: %s -> %s (seq %d)\n", statusOrNone(out.Entry.OldStatus), out.Entry.NewStatus, out.Entry.Seq)
	}
	return nil
}

type TransitionCmd struct {
	Option string              `arg:"" help:"Option ID."`
	User   string              `arg:"" help:"User ID."`
	Status models.AnswerStatus `arg:"" enum:"booked,waitlisted,pending_approval,deleted,waitlist_deleted" help:"Target status."`
	Actor  string              `help:"Administrator recorded as the actor." env:"SEATWISE_ACTOR" default:"admin"`
}

func (c *TransitionCmd) Run(ctx *cli.Context) error {
	ok, err := ctx.Confirm(
		fmt.Sprintf("Move %s on %s to %s?", c.User, c.Option, c.Status),
		"This bypasses the booking protocol and every booking condition except capacity.",
	)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Transition cancelled.")
		return nil
	}

	entry, err := ctx.Engine.AdminTransition(context.Background(), c.Option, c.User, c.Status, c.Actor)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s on %s: %s -> %s (seq %d)\n", c.User, c.Option, statusOrNone(entry.OldStatus), entry.NewStatus, entry.Seq)
	return nil
}

type HistoryCmd struct {
	Option string `arg:"" help:"Option ID."`
	User   string `arg:"" optional:"" help:"User ID. Omit to show the whole option."`
}

func (c *HistoryCmd) Run(ctx *cli.Context) error {
	entries, err := ctx.Engine.History(c.Option, c.User)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No history.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, cli.HeaderStyle.Render("SEQ")+"\tWHEN\tUSER\tFROM\tTO\tACTOR")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", e.Seq, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.UserID, statusOrNone(e.OldStatus), e.NewStatus, e.ActorID)
	}
	return w.Flush()
}

type WaitlistCmd struct {
	Option string `arg:"" help:"Option ID."`
}

func (c *WaitlistCmd) Run(ctx *cli.Context) error {
	waitlist, err := ctx.Engine.Waitlist(c.Option)
	if err != nil {
		return err
	}
	if len(waitlist) == 0 {
		fmt.Println("The waitlist is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, cli.HeaderStyle.Render("#")+"\tUSER\tSINCE")
	for i, a := range waitlist {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, a.UserID, a.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func statusOrNone(s models.AnswerStatus) string {
	if s == "" {
		return "none"
	}
	return string(s)
}
