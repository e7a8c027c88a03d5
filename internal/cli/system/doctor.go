package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/seatwise/internal/backup"
	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/migration"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/validation"
)

type DoctorCmd struct{}

type check struct {
	name     string
	run      func(*cli.Context) error
	needsDB  bool
	warnOnly bool
	// gate marks the check whose failure skips every needsDB check.
	gate bool
}

var checks = []check{
	{name: "Database reachable", run: checkDBReachable, gate: true},
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Configuration records", run: checkConfiguration, needsDB: true},
	{name: "Ledger integrity", run: checkLedgerIntegrity, needsDB: true},
	{name: "Backups present", run: checkBackupsPresent, warnOnly: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true
	for _, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
			if c.gate {
				dbReachable = false
			}
		}
	}

	fmt.Println()
	if hasError {
		return errors.New("diagnostics failed")
	}
	fmt.Println("All checks passed.")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	_, err := ctx.Store.GetAllOptions()
	return err
}

func checkSchemaVersion(ctx *cli.Context) error {
	r, ok := ctx.Store.(interface {
		Runner() (*migration.Runner, error)
	})
	if !ok {
		return nil
	}
	runner, err := r.Runner()
	if err != nil {
		return err
	}
	return runner.Check()
}

func checkConfiguration(ctx *cli.Context) error {
	v := validation.New()
	var result validation.ValidationResult

	options, err := ctx.Store.GetAllOptions()
	if err != nil {
		return err
	}
	for _, opt := range options {
		r := v.ValidateOption(opt)
		result.Conflicts = append(result.Conflicts, r.Conflicts...)
	}

	campaigns, err := ctx.Store.GetAllCampaigns(false)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		r := v.ValidateCampaign(c)
		result.Conflicts = append(result.Conflicts, r.Conflicts...)
	}

	if result.HasConflicts() {
		return errors.New(result.FormatReport())
	}
	return nil
}

// checkLedgerIntegrity looks for states the ledger must never reach: a user
// with two active answers on one option, or more booked seats than capacity.
func checkLedgerIntegrity(ctx *cli.Context) error {
	options, err := ctx.Store.GetAllOptions()
	if err != nil {
		return err
	}

	var problems []string
	for _, opt := range options {
		answers, err := ctx.Store.GetAnswersForOption(opt.ID, false)
		if err != nil {
			return err
		}
		perUser := make(map[string]int)
		booked := 0
		for _, a := range answers {
			if !a.Status.IsActive() {
				continue
			}
			perUser[a.UserID]++
			if a.Status == models.StatusBooked {
				booked++
			}
		}
		for user, n := range perUser {
			if n > 1 {
				problems = append(problems, fmt.Sprintf("option %s: user %s holds %d active answers", opt.ID, user, n))
			}
		}
		if !opt.Unlimited() && booked > opt.Capacity {
			problems = append(problems, fmt.Sprintf("option %s: %d booked over capacity %d", opt.ID, booked, opt.Capacity))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s): %v", len(problems), problems)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %s; run 'seatwise backup create'", mgr.Dir())
	}
	return nil
}
