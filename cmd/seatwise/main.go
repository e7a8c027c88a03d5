package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/seatwise/internal/booking"
	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/cli/backups"
	"github.com/julianstephens/seatwise/internal/cli/campaigns"
	"github.com/julianstephens/seatwise/internal/cli/options"
	"github.com/julianstephens/seatwise/internal/cli/profiles"
	"github.com/julianstephens/seatwise/internal/cli/seats"
	"github.com/julianstephens/seatwise/internal/cli/system"
	"github.com/julianstephens/seatwise/internal/config"
	"github.com/julianstephens/seatwise/internal/constants"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/lock"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/telemetry"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"SQLite ledger path, PostgreSQL connection string, or 'keyring'. PostgreSQL credentials must NOT be embedded in the connection string." default:"${db}"`
	Debug   bool   `help:"Log at debug level and mirror logs to stderr." default:"${debug}"`
	Yes     bool   `short:"y" help:"Answer yes to confirmation prompts."`

	Init       system.InitCmd      `cmd:"" help:"Initialize seatwise storage."`
	Migrate    system.MigrateCmd   `cmd:"" help:"Run database migrations."`
	Doctor     system.DoctorCmd    `cmd:"" help:"Run health checks and diagnostics."`
	Serve      system.ServeCmd     `cmd:"" help:"Serve the booking API over HTTP."`
	Import     options.ImportCmd   `cmd:"" help:"Import a JSON catalog of options, instances, campaigns and profiles."`
	Evaluate   seats.EvaluateCmd   `cmd:"" help:"Show the decision for a user on an option."`
	Act        seats.ActCmd        `cmd:"" help:"Click the booking button for a user."`
	Transition seats.TransitionCmd `cmd:"" help:"Move a user's answer directly as an administrator."`
	History    seats.HistoryCmd    `cmd:"" help:"Show ledger history for an option or user."`
	Waitlist   seats.WaitlistCmd   `cmd:"" help:"Show an option's waitlist in arrival order."`

	Option struct {
		List    options.OptionListCmd    `cmd:"" help:"List options with occupancy." default:"1"`
		Show    options.OptionShowCmd    `cmd:"" help:"Show one option."`
		Cancel  options.OptionCancelCmd  `cmd:"" help:"Cancel an option for everyone."`
		Restore options.OptionRestoreCmd `cmd:"" help:"Undo an option cancellation."`
	} `cmd:"" help:"Manage options."`

	Campaign struct {
		List    campaigns.CampaignListCmd    `cmd:"" help:"List campaigns." default:"1"`
		Delete  campaigns.CampaignDeleteCmd  `cmd:"" help:"Delete a campaign."`
		Restore campaigns.CampaignRestoreCmd `cmd:"" help:"Restore a deleted campaign."`
	} `cmd:"" help:"Manage booking campaigns."`

	Profile struct {
		Set  profiles.ProfileSetCmd  `cmd:"" help:"Set profile fields for a user."`
		Show profiles.ProfileShowCmd `cmd:"" help:"Show a user's profile."`
	} `cmd:"" help:"Manage user profiles."`

	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage sqlite ledger backups."`

	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store the PostgreSQL connection string in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check OS keyring availability."`
	} `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
}

// noStore lists commands that must run before the ledger schema is loadable.
var noStore = map[string]bool{"init": true, "migrate": true, "doctor": true}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		apperrors.Fatal(err)
	}

	db := cfg.DB
	if db == "" {
		db = constants.DefaultConfigPath
	}

	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Booking-option admission engine: seats, waitlists and campaigns"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"db":      db,
			"debug":   fmt.Sprint(cfg.Debug),
		},
	)
	cfg.DB = CLI.Config
	cfg.Debug = CLI.Debug

	command := strings.Fields(ctx.Command())[0]
	serving := command == "serve"
	if err := logger.Init(logger.Config{Debug: cfg.Debug, LogDir: cfg.LogDirectory(), Stderr: serving, JSON: cfg.LogJSON}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		logger.InitWriter(os.Stderr, cfg.Debug)
	}

	if command == "keyring" {
		if err := ctx.Run(&cli.Context{Config: cfg}); err != nil {
			apperrors.Fatal(err)
		}
		return
	}

	store, err := cli.OpenStore(cfg.DB)
	if err != nil {
		apperrors.Fatal(err)
	}
	defer store.Close()

	shutdown, err := telemetry.Setup(context.Background(), cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	}
	defer shutdown(context.Background())

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	appCtx := &cli.Context{
		Store:     store,
		Config:    cfg,
		AssumeYes: CLI.Yes,
		Engine:    booking.NewEngine(store, locker, booking.Options{IntentTTL: cfg.IntentTTL}),
	}

	if !noStore[command] {
		if err := store.Load(); err != nil {
			apperrors.Fatal(err)
		}
	}

	if err := ctx.Run(appCtx); err != nil {
		logger.Error("Command failed", "command", ctx.Command(), "error", err)
		apperrors.Fatal(err)
	}
}

// newLocker returns a Redis-backed locker when SEATWISE_REDIS_ADDR is set so
// several processes can share one ledger, and an in-process locker otherwise.
func newLocker(cfg config.Config) (lock.Locker, func()) {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker(cfg.LockTimeout), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("Using redis locks", "addr", cfg.RedisAddr)
	return lock.NewRedisLocker(client, lock.RedisOptions{Timeout: cfg.LockTimeout}), func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", "error", err)
		}
	}
}
