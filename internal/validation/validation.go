// Package validation checks configuration records before they reach the
// ledger. Struct tags cover single fields; the checks here cover relations
// between fields and between records.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictInvalidField        ConflictType = "invalid_field"
	ConflictInvertedWindow      ConflictType = "inverted_window"
	ConflictUnsupportedOperator ConflictType = "unsupported_operator"
	ConflictUnknownInstance     ConflictType = "unknown_instance"
	ConflictDuplicateID         ConflictType = "duplicate_id"
	ConflictOrphanWaitlist      ConflictType = "orphan_waitlist"
)

// Conflict represents one problem found in a record
type Conflict struct {
	Type        ConflictType
	Record      string // "option", "campaign", "instance" or "profile"
	ID          string
	Description string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s %s: %s\n", c.Record, c.ID, c.Description)
	}
	return b.String()
}

// Err converts the result into a configuration error, or nil when clean.
func (vr *ValidationResult) Err(code apperrors.Code) error {
	if !vr.HasConflicts() {
		return nil
	}
	first := vr.Conflicts[0]
	msg := fmt.Sprintf("%s %s: %s", first.Record, first.ID, first.Description)
	if n := len(vr.Conflicts) - 1; n > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n)
	}
	return apperrors.Configuration(code, msg, nil)
}

func (vr *ValidationResult) add(t ConflictType, record, id, format string, args ...any) {
	vr.Conflicts = append(vr.Conflicts, Conflict{
		Type:        t,
		Record:      record,
		ID:          id,
		Description: fmt.Sprintf(format, args...),
	})
}

// Validator validates options, campaigns, instances and profiles
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator
func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) structFields(vr *ValidationResult, record, id string, s any) {
	err := v.v.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vr.add(ConflictInvalidField, record, id, "%v", err)
		return
	}
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			vr.add(ConflictInvalidField, record, id, "field %s fails %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			vr.add(ConflictInvalidField, record, id, "field %s fails %s", fe.Namespace(), fe.Tag())
		}
	}
}

// ValidateOption checks a single option.
func (v *Validator) ValidateOption(opt models.Option) ValidationResult {
	var vr ValidationResult
	v.checkOption(&vr, opt)
	return vr
}

func (v *Validator) checkOption(vr *ValidationResult, opt models.Option) {
	v.structFields(vr, "option", opt.ID, opt)

	if opt.BookingOpensAt != nil && opt.BookingClosesAt != nil && !opt.BookingClosesAt.After(*opt.BookingOpensAt) {
		vr.add(ConflictInvertedWindow, "option", opt.ID, "booking closes at or before it opens")
	}
	if opt.StartsAt != nil && opt.EndsAt != nil && !opt.EndsAt.After(*opt.StartsAt) {
		vr.add(ConflictInvertedWindow, "option", opt.ID, "option ends at or before it starts")
	}
	if opt.EndsAt != nil && opt.StartsAt == nil {
		vr.add(ConflictInvertedWindow, "option", opt.ID, "ends_at requires starts_at")
	}
	if opt.PreventOverlap && (opt.StartsAt == nil || opt.EndsAt == nil) {
		vr.add(ConflictInvertedWindow, "option", opt.ID, "prevent_overlap requires starts_at and ends_at")
	}
	if opt.Unlimited() && opt.OverbookingCapacity > 0 {
		vr.add(ConflictOrphanWaitlist, "option", opt.ID, "overbooking_capacity %d has no effect without a capacity", opt.OverbookingCapacity)
	}
	for i, r := range opt.ProfileRestrictions {
		if !r.Operator.SupportsSet() {
			vr.add(ConflictUnsupportedOperator, "option", opt.ID, "profile_restrictions[%d] operator %q cannot compare profile fields", i, r.Operator)
		}
	}
}

// ValidateCampaign checks a single campaign.
func (v *Validator) ValidateCampaign(c models.Campaign) ValidationResult {
	var vr ValidationResult
	v.checkCampaign(&vr, c)
	return vr
}

func (v *Validator) checkCampaign(vr *ValidationResult, c models.Campaign) {
	v.structFields(vr, "campaign", c.ID, c)

	if f := c.OptionFilter; f != nil && !f.Operator.SupportsValue() {
		vr.add(ConflictUnsupportedOperator, "campaign", c.ID, "option_filter operator %q cannot compare option attributes", f.Operator)
	}
	if f := c.PopulationFilter; f != nil && !f.Operator.SupportsSet() {
		vr.add(ConflictUnsupportedOperator, "campaign", c.ID, "population_filter operator %q cannot compare profile fields", f.Operator)
	}
}

// ValidateInstance checks a single instance.
func (v *Validator) ValidateInstance(inst models.Instance) ValidationResult {
	var vr ValidationResult
	v.structFields(&vr, "instance", inst.ID, inst)
	return vr
}

// ValidateProfile checks a single profile.
func (v *Validator) ValidateProfile(p models.Profile) ValidationResult {
	var vr ValidationResult
	v.checkProfile(&vr, p)
	return vr
}

func (v *Validator) checkProfile(vr *ValidationResult, p models.Profile) {
	v.structFields(vr, "profile", p.UserID, p)
	for name := range p.Fields {
		if strings.TrimSpace(name) == "" {
			vr.add(ConflictInvalidField, "profile", p.UserID, "profile field names cannot be blank")
		}
	}
}

// ValidateCatalog checks every record in c and the references between them.
// knownInstances lists instance ids already stored; options may reference
// those as well as instances in the catalog.
func (v *Validator) ValidateCatalog(c models.Catalog, knownInstances []string) ValidationResult {
	var vr ValidationResult

	instances := make(map[string]bool, len(knownInstances)+len(c.Instances))
	for _, id := range knownInstances {
		instances[id] = true
	}

	seen := make(map[string]map[string]int)
	mark := func(record, id string) {
		if seen[record] == nil {
			seen[record] = make(map[string]int)
		}
		seen[record][id]++
	}

	for _, inst := range c.Instances {
		v.structFields(&vr, "instance", inst.ID, inst)
		instances[inst.ID] = true
		mark("instance", inst.ID)
	}
	for _, opt := range c.Options {
		v.checkOption(&vr, opt)
		if opt.InstanceID != "" && !instances[opt.InstanceID] {
			vr.add(ConflictUnknownInstance, "option", opt.ID, "instance %q does not exist", opt.InstanceID)
		}
		mark("option", opt.ID)
	}
	for _, camp := range c.Campaigns {
		v.checkCampaign(&vr, camp)
		mark("campaign", camp.ID)
	}
	for _, p := range c.Profiles {
		v.checkProfile(&vr, p)
		mark("profile", p.UserID)
	}

	records := make([]string, 0, len(seen))
	for record := range seen {
		records = append(records, record)
	}
	sort.Strings(records)
	for _, record := range records {
		ids := make([]string, 0)
		for id, n := range seen[record] {
			if n > 1 && id != "" {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			vr.add(ConflictDuplicateID, record, id, "appears %d times", seen[record][id])
		}
	}

	return vr
}
