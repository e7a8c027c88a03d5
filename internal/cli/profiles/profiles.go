package profiles

import (
	"fmt"
	"sort"

	"github.com/julianstephens/seatwise/internal/cli"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/validation"
)

type ProfileSetCmd struct {
	User    string   `arg:"" help:"User ID."`
	Field   []string `short:"f" help:"Profile field as name=value[,value...]. Repeatable."`
	Replace bool     `help:"Replace the whole profile instead of merging fields."`
}

func (c *ProfileSetCmd) Run(ctx *cli.Context) error {
	fields, err := cli.ParseFields(c.Field)
	if err != nil {
		return err
	}

	profile := models.Profile{UserID: c.User, Fields: map[string]models.StringSet{}}
	if !c.Replace {
		existing, err := ctx.Store.GetProfile(c.User)
		if err != nil {
			return err
		}
		for name, values := range existing.Fields {
			profile.Fields[name] = values
		}
	}
	for name, values := range fields {
		profile.Fields[name] = models.NewStringSet(values...)
	}

	vr := validation.New().ValidateProfile(profile)
	if err := vr.Err(apperrors.CodeInvalidProfile); err != nil {
		return err
	}
	if err := ctx.Store.SaveProfile(profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	fmt.Printf("Saved profile for %s (%d field(s))\n", c.User, len(profile.Fields))
	return nil
}

type ProfileShowCmd struct {
	User string `arg:"" help:"User ID."`
}

func (c *ProfileShowCmd) Run(ctx *cli.Context) error {
	profile, err := ctx.Store.GetProfile(c.User)
	if err != nil {
		return err
	}
	if len(profile.Fields) == 0 {
		fmt.Printf("No profile fields stored for %s.\n", c.User)
		return nil
	}

	names := make([]string, 0, len(profile.Fields))
	for name := range profile.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println(cli.HeaderStyle.Render(c.User))
	for _, name := range names {
		fmt.Printf("  %s = %s\n", name, profile.Fields[name])
	}
	return nil
}
