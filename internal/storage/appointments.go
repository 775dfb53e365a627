package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/remember-rp/concierge/internal/availability"
	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/internal/outbox"
	"github.com/remember-rp/concierge/libs/db"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

// Commit inserts a confirmed appointment and its domain event in one
// transaction. The tolerance window is re-validated here, and the table's
// exclusion constraint arbitrates any remaining race: the losing transaction
// gets availability.ErrSlotConflict, never a second booking in the window.
func (r *AppointmentRepository) Commit(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE starts_at > $1 AND starts_at < $2
		)
	`, appt.StartsAt.Add(-availability.Tolerance), appt.StartsAt.Add(availability.Tolerance)).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return availability.ErrSlotConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, requester_id, counterpart_id, day_label, hour_label, starts_at, channel_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, appt.ID, appt.RequesterID, appt.CounterpartID, appt.DayLabel, appt.HourLabel,
		appt.StartsAt, appt.ChannelRef, appt.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return availability.ErrSlotConflict
		}
		return err
	}

	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentConfirmed, appt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Cancel deletes an appointment and returns the deleted row so callers can
// notify the other party.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string) (*model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var appt model.Appointment
	err = tx.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING id, requester_id, counterpart_id, day_label, hour_label, starts_at, channel_ref, created_at
	`, id).Scan(
		&appt.ID,
		&appt.RequesterID,
		&appt.CounterpartID,
		&appt.DayLabel,
		&appt.HourLabel,
		&appt.StartsAt,
		&appt.ChannelRef,
		&appt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentCancelled, &appt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListNear returns appointments starting strictly inside (at-within, at+within).
func (r *AppointmentRepository) ListNear(ctx context.Context, at time.Time, within time.Duration) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT id, requester_id, counterpart_id, day_label, hour_label, starts_at, channel_ref, created_at
		FROM appointments
		WHERE starts_at > $1 AND starts_at < $2
		ORDER BY starts_at ASC
	`, at.Add(-within), at.Add(within))
}

func (r *AppointmentRepository) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 15
	}
	return r.list(ctx, `
		SELECT id, requester_id, counterpart_id, day_label, hour_label, starts_at, channel_ref, created_at
		FROM appointments
		WHERE starts_at > $1
		ORDER BY starts_at ASC
		LIMIT $2
	`, after, limit)
}

// DeleteEndedBefore sweeps appointments whose slot is older than cutoff.
func (r *AppointmentRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE starts_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *AppointmentRepository) Clear(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM appointments`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.RequesterID,
			&appt.CounterpartID,
			&appt.DayLabel,
			&appt.HourLabel,
			&appt.StartsAt,
			&appt.ChannelRef,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt *model.Appointment) error {
	if r.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"requester_id":   appt.RequesterID,
		"counterpart_id": appt.CounterpartID,
		"starts_at":      appt.StartsAt.UTC().Format(time.RFC3339),
		"channel_ref":    appt.ChannelRef,
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
