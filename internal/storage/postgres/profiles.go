package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/seatwise/internal/models"
)

func (s *Store) SaveProfile(p models.Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM profiles WHERE user_id = $1", p.UserID); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO profiles (user_id, field, value) VALUES ($1, $2, $3)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for field, values := range p.Fields {
		b, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("failed to encode profile field %s: %w", field, err)
		}
		if _, err := stmt.Exec(p.UserID, field, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetProfile(userID string) (models.Profile, error) {
	rows, err := s.db.Query("SELECT field, value FROM profiles WHERE user_id = $1", userID)
	if err != nil {
		return models.Profile{}, err
	}
	defer rows.Close()

	p := models.Profile{UserID: userID, Fields: map[string]models.StringSet{}}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return models.Profile{}, err
		}
		var set models.StringSet
		if err := json.Unmarshal([]byte(value), &set); err != nil {
			return models.Profile{}, fmt.Errorf("failed to decode profile field %s of %s: %w", field, userID, err)
		}
		p.Fields[field] = set
	}
	return p, rows.Err()
}
