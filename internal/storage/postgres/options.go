package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/seatwise/internal/models"
	"github.com/julianstephens/seatwise/internal/storage"
)

const optionColumns = `id, instance_id, title, capacity, overbooking_capacity,
	booking_opens_at, booking_closes_at, starts_at, ends_at,
	requires_confirmation, approval_holds_seat, cancellable, disabled, prevent_overlap,
	price, cancelled, profile_restrictions, custom_attributes`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOption(row scanner) (models.Option, error) {
	var o models.Option
	var opensAt, closesAt, startsAt, endsAt sql.NullString
	var restrictions, attributes string

	err := row.Scan(
		&o.ID, &o.InstanceID, &o.Title, &o.Capacity, &o.OverbookingCapacity,
		&opensAt, &closesAt, &startsAt, &endsAt,
		&o.RequiresConfirmation, &o.ApprovalHoldsSeat, &o.Cancellable, &o.Disabled, &o.PreventOverlap,
		&o.Price, &o.Cancelled, &restrictions, &attributes,
	)
	if err != nil {
		return models.Option{}, err
	}

	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{opensAt, &o.BookingOpensAt},
		{closesAt, &o.BookingClosesAt},
		{startsAt, &o.StartsAt},
		{endsAt, &o.EndsAt},
	} {
		t, err := storage.TimePtr(f.src)
		if err != nil {
			return models.Option{}, fmt.Errorf("option %s: %w", o.ID, err)
		}
		*f.dst = t
	}

	if err := storage.DecodeOptionJSON(&o, restrictions, attributes); err != nil {
		return models.Option{}, err
	}
	return o, nil
}

func (s *Store) SaveOption(o models.Option) error {
	restrictions, attributes, err := storage.EncodeOptionJSON(o)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO options (`+optionColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT(id) DO UPDATE SET
			instance_id = excluded.instance_id,
			title = excluded.title,
			capacity = excluded.capacity,
			overbooking_capacity = excluded.overbooking_capacity,
			booking_opens_at = excluded.booking_opens_at,
			booking_closes_at = excluded.booking_closes_at,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			requires_confirmation = excluded.requires_confirmation,
			approval_holds_seat = excluded.approval_holds_seat,
			cancellable = excluded.cancellable,
			disabled = excluded.disabled,
			prevent_overlap = excluded.prevent_overlap,
			price = excluded.price,
			cancelled = excluded.cancelled,
			profile_restrictions = excluded.profile_restrictions,
			custom_attributes = excluded.custom_attributes,
			updated_at = excluded.updated_at`,
		o.ID, o.InstanceID, o.Title, o.Capacity, o.OverbookingCapacity,
		storage.NullTime(o.BookingOpensAt), storage.NullTime(o.BookingClosesAt), storage.NullTime(o.StartsAt), storage.NullTime(o.EndsAt),
		o.RequiresConfirmation, o.ApprovalHoldsSeat, o.Cancellable, o.Disabled, o.PreventOverlap,
		o.Price, o.Cancelled, restrictions, attributes, storage.FormatTime(time.Now()),
	)
	return err
}

func (s *Store) GetOption(id string) (models.Option, error) {
	o, err := scanOption(s.db.QueryRow("SELECT "+optionColumns+" FROM options WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Option{}, fmt.Errorf("option %s: %w", id, storage.ErrNotFound)
	}
	return o, err
}

func (s *Store) GetAllOptions() ([]models.Option, error) {
	rows, err := s.db.Query("SELECT " + optionColumns + " FROM options ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Option
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) SetOptionCancelled(id string, cancelled bool) error {
	res, err := s.db.Exec("UPDATE options SET cancelled = $1, updated_at = $2 WHERE id = $3",
		cancelled, storage.FormatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("option %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
