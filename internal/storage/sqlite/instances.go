package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

func (s *Store) SaveInstance(inst models.Instance) error {
	_, err := s.db.Exec(`
		INSERT INTO instances (id, name, max_answers_per_user) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, max_answers_per_user = excluded.max_answers_per_user`,
		inst.ID, inst.Name, inst.MaxAnswersPerUser)
	return err
}

func (s *Store) GetInstance(id string) (models.Instance, error) {
	var inst models.Instance
	err := s.db.QueryRow("SELECT id, name, max_answers_per_user FROM instances WHERE id = ?", id).
		Scan(&inst.ID, &inst.Name, &inst.MaxAnswersPerUser)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Instance{}, fmt.Errorf("instance %s: %w", id, storage.ErrNotFound)
	}
	return inst, err
}

func (s *Store) GetAllInstances() ([]models.Instance, error) {
	rows, err := s.db.Query("SELECT id, name, max_answers_per_user FROM instances ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Instance
	for rows.Next() {
		var inst models.Instance
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.MaxAnswersPerUser); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}
