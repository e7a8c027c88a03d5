// Package importer loads option, instance, campaign and profile records from
// a JSON catalog document into a storage provider.
package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
	"github.com/julianstephens/seatwise/internal/validation"
)

// Summary counts the records written by an import.
type Summary struct {
	Instances int
	Options   int
	Campaigns int
	Profiles  int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d instance(s), %d option(s), %d campaign(s), %d profile(s)", s.Instances, s.Options, s.Campaigns, s.Profiles)
}

type Importer struct {
	store     storage.Provider
	validator *validation.Validator
}

func New(store storage.Provider) *Importer {
	return &Importer{store: store, validator: validation.New()}
}

// Decode parses a catalog document. Unknown fields are rejected so typos in
// hand-written files do not silently drop settings.
func Decode(r io.Reader) (models.Catalog, error) {
	var c models.Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return models.Catalog{}, apperrors.Configuration(apperrors.CodeInvalidOption, "failed to parse catalog", err)
	}
	if dec.More() {
		return models.Catalog{}, apperrors.Configuration(apperrors.CodeInvalidOption, "catalog must contain a single JSON document", nil)
	}
	return c, nil
}

// ImportFile reads and imports the catalog at path.
func (im *Importer) ImportFile(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Summary{}, err
	}
	return im.Import(c)
}

// Check validates c against the records already stored without writing.
func (im *Importer) Check(c models.Catalog) (validation.ValidationResult, error) {
	stored, err := im.store.GetAllInstances()
	if err != nil {
		return validation.ValidationResult{}, fmt.Errorf("failed to list instances: %w", err)
	}
	known := make([]string, 0, len(stored))
	for _, inst := range stored {
		known = append(known, inst.ID)
	}
	return im.validator.ValidateCatalog(c, known), nil
}

// Import validates the whole catalog and, only when it is clean, writes
// instances, options, campaigns and profiles in that order. Existing records
// with the same id are replaced, except that an option's administrative
// cancel flag is kept.
func (im *Importer) Import(c models.Catalog) (Summary, error) {
	if c.Empty() {
		return Summary{}, apperrors.Configuration(apperrors.CodeInvalidOption, "catalog is empty", nil)
	}

	vr, err := im.Check(c)
	if err != nil {
		return Summary{}, err
	}
	if err := vr.Err(apperrors.CodeInvalidOption); err != nil {
		logger.Error("Catalog rejected", "conflicts", len(vr.Conflicts))
		return Summary{}, err
	}

	var sum Summary
	for _, inst := range c.Instances {
		if err := im.store.SaveInstance(inst); err != nil {
			return sum, fmt.Errorf("failed to save instance %s: %w", inst.ID, err)
		}
		sum.Instances++
	}
	for _, opt := range c.Options {
		existing, err := im.store.GetOption(opt.ID)
		switch {
		case err == nil:
			opt.Cancelled = opt.Cancelled || existing.Cancelled
		case !errors.Is(err, storage.ErrNotFound):
			return sum, fmt.Errorf("failed to read option %s: %w", opt.ID, err)
		}
		if err := im.store.SaveOption(opt); err != nil {
			return sum, fmt.Errorf("failed to save option %s: %w", opt.ID, err)
		}
		sum.Options++
	}
	for _, camp := range c.Campaigns {
		if err := im.store.SaveCampaign(camp); err != nil {
			return sum, fmt.Errorf("failed to save campaign %s: %w", camp.ID, err)
		}
		sum.Campaigns++
	}
	for _, p := range c.Profiles {
		if err := im.store.SaveProfile(p); err != nil {
			return sum, fmt.Errorf("failed to save profile %s: %w", p.UserID, err)
		}
		sum.Profiles++
	}

	logger.Info("Catalog imported", "instances", sum.Instances, "options", sum.Options, "campaigns", sum.Campaigns, "profiles", sum.Profiles)
	return sum, nil
}
