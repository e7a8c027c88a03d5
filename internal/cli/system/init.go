package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/seatwise/internal/cli"
)

type InitCmd struct {
	Force bool `help:"Delete an existing sqlite ledger before initializing."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if !ctx.IsSQLite() {
			return fmt.Errorf("--force is only supported for sqlite storage")
		}
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			ok, err := ctx.Confirm("Delete the existing ledger?", "Every seat, history entry and option at "+dbPath+" will be removed.")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Init cancelled.")
				return nil
			}
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized seatwise storage at: %s\n", ctx.Store.GetConfigPath())
	return nil
}
