package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

const campaignColumns = `id, name, starts_at, ends_at, option_filter, population_filter,
	block_operator, threshold_percent, deleted_at`

func scanCampaign(row scanner) (models.Campaign, error) {
	var c models.Campaign
	var startsAt, endsAt, op string
	var optionFilter, populationFilter, deletedAt sql.NullString

	if err := row.Scan(&c.ID, &c.Name, &startsAt, &endsAt, &optionFilter, &populationFilter,
		&op, &c.ThresholdPercent, &deletedAt); err != nil {
		return models.Campaign{}, err
	}
	c.BlockOperator = models.BlockOperator(op)

	var err error
	if c.StartsAt, err = storage.ParseTime(startsAt); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", c.ID, err)
	}
	if c.EndsAt, err = storage.ParseTime(endsAt); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", c.ID, err)
	}
	if c.DeletedAt, err = storage.TimePtr(deletedAt); err != nil {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", c.ID, err)
	}
	if err := storage.DecodeCampaignFilters(&c, optionFilter, populationFilter); err != nil {
		return models.Campaign{}, err
	}
	return c, nil
}

func (s *Store) SaveCampaign(c models.Campaign) error {
	of, pf, err := storage.EncodeCampaignFilters(c)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO campaigns (`+campaignColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			option_filter = excluded.option_filter,
			population_filter = excluded.population_filter,
			block_operator = excluded.block_operator,
			threshold_percent = excluded.threshold_percent,
			deleted_at = excluded.deleted_at`,
		c.ID, c.Name, storage.FormatTime(c.StartsAt), storage.FormatTime(c.EndsAt), of, pf,
		string(c.BlockOperator), c.ThresholdPercent, storage.NullTime(c.DeletedAt))
	return err
}

func (s *Store) GetCampaign(id string) (models.Campaign, error) {
	c, err := scanCampaign(s.db.QueryRow("SELECT "+campaignColumns+" FROM campaigns WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", id, storage.ErrNotFound)
	}
	return c, err
}

func (s *Store) GetAllCampaigns(includeDeleted bool) ([]models.Campaign, error) {
	query := "SELECT " + campaignColumns + " FROM campaigns"
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	rows, err := s.db.Query(query + " ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCampaign(id string) error {
	return s.setCampaignDeleted(id, sql.NullString{String: storage.FormatTime(time.Now()), Valid: true})
}

func (s *Store) RestoreCampaign(id string) error {
	return s.setCampaignDeleted(id, sql.NullString{})
}

func (s *Store) setCampaignDeleted(id string, at sql.NullString) error {
	res, err := s.db.Exec("UPDATE campaigns SET deleted_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("campaign %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
