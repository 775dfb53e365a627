package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/internal/outbox"
	"github.com/remember-rp/concierge/libs/db"
)

type AbsenceRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAbsenceRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AbsenceRepository {
	return &AbsenceRepository{pool: pool, outbox: outboxRepo}
}

// CountOverlapping counts records of staffID whose inclusive date range
// intersects [start, end]. Adjacent ranges do not count.
func (r *AbsenceRepository) CountOverlapping(ctx context.Context, staffID string, start, end time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM absences
		WHERE staff_id = $1
		AND NOT (end_date < $2 OR start_date > $3)
	`, staffID, start, end).Scan(&n)
	return n, err
}

func (r *AbsenceRepository) Insert(ctx context.Context, a *model.Absence) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO absences (id, staff_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.StaffID, a.StartDate, a.EndDate, a.Reason, a.CreatedAt)
	if err != nil {
		return err
	}

	if r.outbox != nil {
		payload, err := json.Marshal(map[string]any{
			"absence_id": a.ID,
			"staff_id":   a.StaffID,
			"start_date": a.StartDate.Format(time.DateOnly),
			"end_date":   a.EndDate.Format(time.DateOnly),
		})
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "absence",
			AggregateID:   a.ID,
			EventType:     outbox.EventAbsenceDeclared,
			Payload:       payload,
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *AbsenceRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Absence, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(ctx, `
		SELECT id, staff_id, start_date, end_date, COALESCE(reason, ''), created_at
		FROM absences
		WHERE end_date >= $1
		ORDER BY start_date ASC
		LIMIT $2
	`, from, limit)
}

func (r *AbsenceRepository) ListByStaff(ctx context.Context, staffID string, from time.Time) ([]model.Absence, error) {
	return r.list(ctx, `
		SELECT id, staff_id, start_date, end_date, COALESCE(reason, ''), created_at
		FROM absences
		WHERE staff_id = $1 AND end_date >= $2
		ORDER BY start_date ASC
	`, staffID, from)
}

func (r *AbsenceRepository) Delete(ctx context.Context, id, staffID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM absences WHERE id = $1 AND staff_id = $2`, id, staffID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *AbsenceRepository) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM absences WHERE end_date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *AbsenceRepository) Clear(ctx context.Context) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM absences`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *AbsenceRepository) list(ctx context.Context, query string, args ...any) ([]model.Absence, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var absences []model.Absence
	for rows.Next() {
		var a model.Absence
		if err := rows.Scan(&a.ID, &a.StaffID, &a.StartDate, &a.EndDate, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		absences = append(absences, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return absences, nil
}
