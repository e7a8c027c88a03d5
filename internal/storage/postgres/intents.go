package postgres

import (
	"database/sql"
	"errors"

	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

func (s *Store) GetIntent(optionID, userID string) (*models.Intent, error) {
	var kind, createdAt string
	err := s.db.QueryRow("SELECT kind, created_at FROM intents WHERE option_id = $1 AND user_id = $2", optionID, userID).
		Scan(&kind, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at, err := storage.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &models.Intent{OptionID: optionID, UserID: userID, Kind: models.IntentKind(kind), CreatedAt: at}, nil
}

func (s *Store) SaveIntent(i models.Intent) error {
	_, err := s.db.Exec(`
		INSERT INTO intents (option_id, user_id, kind, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT(option_id, user_id) DO UPDATE SET kind = excluded.kind, created_at = excluded.created_at`,
		i.OptionID, i.UserID, string(i.Kind), storage.FormatTime(i.CreatedAt))
	return err
}

func (s *Store) ClearIntent(optionID, userID string) error {
	_, err := s.db.Exec("DELETE FROM intents WHERE option_id = $1 AND user_id = $2", optionID, userID)
	return err
}
