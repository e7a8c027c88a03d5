package options

import (
	"fmt"
	"os"

	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/importer"
)

type ImportCmd struct {
	File   string `arg:"" type:"existingfile" help:"JSON catalog of instances, options, campaigns and profiles."`
	DryRun bool   `help:"Validate the catalog without writing it."`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	im := importer.New(ctx.Store)

	if c.DryRun {
		f, err := os.Open(c.File)
		if err != nil {
			return err
		}
		defer f.Close()
		catalog, err := importer.Decode(f)
		if err != nil {
			return err
		}
		vr, err := im.Check(catalog)
		if err != nil {
			return err
		}
		fmt.Print(vr.FormatReport())
		if vr.HasConflicts() {
			return fmt.Errorf("catalog has %d conflict(s)", len(vr.Conflicts))
		}
		fmt.Println()
		return nil
	}

	ctx.PerformAutomaticBackup()
	sum, err := im.ImportFile(c.File)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("✓ Imported %s\n", sum)
	return nil
}
