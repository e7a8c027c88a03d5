package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

const answerColumns = "id, option_id, user_id, status, created_at, updated_at"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []models.AnswerStatus) []interface{} {
	out := make([]interface{}, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanAnswers(rows *sql.Rows) ([]models.Answer, error) {
	defer rows.Close()
	var out []models.Answer
	for rows.Next() {
		var a models.Answer
		var status, createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.OptionID, &a.UserID, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		a.Status = models.AnswerStatus(status)
		var err error
		if a.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
			return nil, err
		}
		if a.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func activeAnswers(q queryer, optionID, userID string) ([]models.Answer, error) {
	args := append([]interface{}{optionID, userID}, storage.ActiveStatusList()...)
	rows, err := q.Query(`SELECT `+answerColumns+` FROM answers
		WHERE option_id = ? AND user_id = ? AND status IN (`+placeholders(len(models.ActiveStatuses))+`)`, args...)
	if err != nil {
		return nil, err
	}
	return scanAnswers(rows)
}

func countAnswers(q queryer, optionID, excludeID string, statuses []models.AnswerStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := append([]interface{}{optionID, excludeID}, statusArgs(statuses)...)
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM answers
		WHERE option_id = ? AND id <> ? AND status IN (`+placeholders(len(statuses))+`)`, args...).Scan(&n)
	return n, err
}

func (s *Store) GetAnswer(optionID, userID string) (*models.Answer, error) {
	active, err := activeAnswers(s.db, optionID, userID)
	if err != nil {
		return nil, err
	}
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return &active[0], nil
	default:
		return nil, storage.DuplicateActive(optionID, userID, len(active))
	}
}

// answerOrder lists answers in creation order, breaking timestamp ties by
// the sequence of their first history entry.
const answerOrder = ` ORDER BY created_at, (SELECT MIN(h.seq) FROM answer_history h WHERE h.answer_id = answers.id)`

func (s *Store) GetAnswersForOption(optionID string, includeDeleted bool) ([]models.Answer, error) {
	query := "SELECT " + answerColumns + " FROM answers WHERE option_id = ?"
	args := []interface{}{optionID}
	if !includeDeleted {
		query += " AND status IN (" + placeholders(len(models.ActiveStatuses)) + ")"
		args = append(args, storage.ActiveStatusList()...)
	}
	rows, err := s.db.Query(query+answerOrder, args...)
	if err != nil {
		return nil, err
	}
	return scanAnswers(rows)
}

func (s *Store) GetActiveAnswersForUser(userID string) ([]models.Answer, error) {
	args := append([]interface{}{userID}, storage.ActiveStatusList()...)
	rows, err := s.db.Query(`SELECT `+answerColumns+` FROM answers
		WHERE user_id = ? AND status IN (`+placeholders(len(models.ActiveStatuses))+`)`+answerOrder, args...)
	if err != nil {
		return nil, err
	}
	return scanAnswers(rows)
}

func (s *Store) Count(optionID string, statuses ...models.AnswerStatus) (int, error) {
	return countAnswers(s.db, optionID, "", statuses)
}

func (s *Store) GetOccupancy(optionID string) (models.Occupancy, error) {
	args := append([]interface{}{optionID}, storage.ActiveStatusList()...)
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM answers
		WHERE option_id = ? AND status IN (`+placeholders(len(models.ActiveStatuses))+`)
		GROUP BY status`, args...)
	if err != nil {
		return models.Occupancy{}, err
	}
	defer rows.Close()

	var occ models.Occupancy
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.Occupancy{}, err
		}
		switch models.AnswerStatus(status) {
		case models.StatusBooked:
			occ.Booked = n
		case models.StatusWaitlisted:
			occ.Waitlisted = n
		case models.StatusPendingApproval:
			occ.PendingApproval = n
		}
	}
	return occ, rows.Err()
}

func (s *Store) Transition(req storage.TransitionRequest) (models.HistoryEntry, error) {
	if req.At.IsZero() {
		req.At = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT 1 FROM options WHERE id = ?", req.OptionID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.HistoryEntry{}, fmt.Errorf("option %s: %w", req.OptionID, storage.ErrNotFound)
		}
		return models.HistoryEntry{}, err
	}

	active, err := activeAnswers(tx, req.OptionID, req.UserID)
	if err != nil {
		return models.HistoryEntry{}, err
	}

	occupied := 0
	if req.Guard != nil {
		exclude := ""
		if len(active) == 1 {
			exclude = active[0].ID
		}
		if occupied, err = countAnswers(tx, req.OptionID, exclude, req.Guard.Statuses); err != nil {
			return models.HistoryEntry{}, err
		}
	}

	op, err := storage.PlanTransition(req, active, occupied, uuid.NewString)
	if err != nil {
		return models.HistoryEntry{}, err
	}

	at := storage.FormatTime(req.At)
	if op.Insert {
		_, err = tx.Exec("INSERT INTO answers ("+answerColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			op.AnswerID, req.OptionID, req.UserID, string(op.NewStatus), at, at)
	} else {
		var res sql.Result
		res, err = tx.Exec("UPDATE answers SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			string(op.NewStatus), at, op.AnswerID, string(op.OldStatus))
		if err == nil {
			if n, _ := res.RowsAffected(); n != 1 {
				return models.HistoryEntry{}, apperrors.Contention(apperrors.CodeConcurrentCommit,
					fmt.Sprintf("answer %s changed during transition", op.AnswerID), nil)
			}
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			return models.HistoryEntry{}, apperrors.Contention(apperrors.CodeDuplicateActiveSeat,
				fmt.Sprintf("user %s already holds an answer on %s", req.UserID, req.OptionID), err)
		}
		return models.HistoryEntry{}, err
	}

	entry := models.HistoryEntry{
		ID:        uuid.NewString(),
		AnswerID:  op.AnswerID,
		OptionID:  req.OptionID,
		UserID:    req.UserID,
		OldStatus: op.OldStatus,
		NewStatus: op.NewStatus,
		ActorID:   req.ActorID,
		CreatedAt: req.At.UTC(),
	}
	res, err := tx.Exec(`INSERT INTO answer_history (id, answer_id, option_id, user_id, old_status, new_status, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AnswerID, entry.OptionID, entry.UserID, string(entry.OldStatus), string(entry.NewStatus), entry.ActorID, at)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to append history: %w", err)
	}
	if entry.Seq, err = res.LastInsertId(); err != nil {
		return models.HistoryEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.HistoryEntry{}, fmt.Errorf("failed to commit transition: %w", err)
	}
	return entry, nil
}

const historyColumns = "seq, id, answer_id, option_id, user_id, old_status, new_status, actor_id, created_at"

func scanHistory(rows *sql.Rows) ([]models.HistoryEntry, error) {
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var oldStatus, newStatus, createdAt string
		if err := rows.Scan(&e.Seq, &e.ID, &e.AnswerID, &e.OptionID, &e.UserID, &oldStatus, &newStatus, &e.ActorID, &createdAt); err != nil {
			return nil, err
		}
		e.OldStatus = models.AnswerStatus(oldStatus)
		e.NewStatus = models.AnswerStatus(newStatus)
		var err error
		if e.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetHistory(optionID, userID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query("SELECT "+historyColumns+" FROM answer_history WHERE option_id = ? AND user_id = ? ORDER BY seq", optionID, userID)
	if err != nil {
		return nil, err
	}
	return scanHistory(rows)
}

func (s *Store) GetOptionHistory(optionID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query("SELECT "+historyColumns+" FROM answer_history WHERE option_id = ? ORDER BY seq", optionID)
	if err != nil {
		return nil, err
	}
	return scanHistory(rows)
}

func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// primary result code only, when extended codes are off
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
