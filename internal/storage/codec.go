package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/seatwise/internal/constants"
	"github.com/julianstephens/seatwise/internal/models"
)

// FormatTime renders a timestamp in the ledger's storage format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(constants.TimestampFormat)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// NullTime converts an optional timestamp into a nullable column value.
func NullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// TimePtr converts a nullable column back into an optional timestamp.
func TimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EncodeOptionJSON renders the JSON columns of an option.
func EncodeOptionJSON(o models.Option) (restrictions string, attributes string, err error) {
	r := o.ProfileRestrictions
	if r == nil {
		r = []models.ProfileRestriction{}
	}
	rb, err := json.Marshal(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode profile restrictions: %w", err)
	}
	a := o.CustomAttributes
	if a == nil {
		a = map[string]string{}
	}
	ab, err := json.Marshal(a)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode custom attributes: %w", err)
	}
	return string(rb), string(ab), nil
}

// DecodeOptionJSON fills the JSON columns of an option.
func DecodeOptionJSON(o *models.Option, restrictions, attributes string) error {
	if restrictions != "" {
		if err := json.Unmarshal([]byte(restrictions), &o.ProfileRestrictions); err != nil {
			return fmt.Errorf("failed to decode profile restrictions of option %s: %w", o.ID, err)
		}
	}
	if attributes != "" {
		if err := json.Unmarshal([]byte(attributes), &o.CustomAttributes); err != nil {
			return fmt.Errorf("failed to decode custom attributes of option %s: %w", o.ID, err)
		}
	}
	return nil
}

// EncodeFilter renders an optional campaign filter as a nullable JSON column.
func EncodeFilter(v interface{}, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// DecodeCampaignFilters fills the optional filters of a campaign.
func DecodeCampaignFilters(c *models.Campaign, optionFilter, populationFilter sql.NullString) error {
	if optionFilter.Valid && optionFilter.String != "" {
		var f models.OptionFilter
		if err := json.Unmarshal([]byte(optionFilter.String), &f); err != nil {
			return fmt.Errorf("failed to decode option filter of campaign %s: %w", c.ID, err)
		}
		c.OptionFilter = &f
	}
	if populationFilter.Valid && populationFilter.String != "" {
		var f models.PopulationFilter
		if err := json.Unmarshal([]byte(populationFilter.String), &f); err != nil {
			return fmt.Errorf("failed to decode population filter of campaign %s: %w", c.ID, err)
		}
		c.PopulationFilter = &f
	}
	return nil
}

// EncodeCampaignFilters renders both optional filters of a campaign.
func EncodeCampaignFilters(c models.Campaign) (sql.NullString, sql.NullString, error) {
	of, err := EncodeFilter(c.OptionFilter, c.OptionFilter != nil)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode option filter: %w", err)
	}
	pf, err := EncodeFilter(c.PopulationFilter, c.PopulationFilter != nil)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, fmt.Errorf("failed to encode population filter: %w", err)
	}
	return of, pf, nil
}
