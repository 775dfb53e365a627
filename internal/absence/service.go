package absence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/remember-rp/concierge/internal/calendar"
	"github.com/remember-rp/concierge/internal/model"
)

var (
	// ErrInvalidRange: end date before start date. Validation, nothing stored.
	ErrInvalidRange = errors.New("end date before start date")
	// ErrPastRange: the whole range is already over. Validation, nothing stored.
	ErrPastRange = errors.New("absence period already over")
	// ErrOverlap: the range intersects an existing record of the same staff
	// member. Conflict, so the caller can offer an alternative.
	ErrOverlap = errors.New("overlapping absence declared")
	// ErrNotFound: the record is already gone; a benign race.
	ErrNotFound = errors.New("absence not found")
)

type Store interface {
	CountOverlapping(ctx context.Context, staffID string, start, end time.Time) (int, error)
	Insert(ctx context.Context, a *model.Absence) error
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Absence, error)
	ListByStaff(ctx context.Context, staffID string, from time.Time) ([]model.Absence, error)
	Delete(ctx context.Context, id, staffID string) (bool, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Clear(ctx context.Context) (int64, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Declare records a new absence after validating the range and checking for
// an inclusive-date overlap with the staff member's existing records.
// Adjacent ranges (one ending the day before the next starts) do not overlap.
func (s *Service) Declare(ctx context.Context, staffID string, start, end time.Time, reason string) (*model.Absence, error) {
	return s.declare(ctx, staffID, start, end, reason, false)
}

// ForceDeclare is the administrative variant: the past-range guard is
// skipped, but range validity and the per-staff overlap invariant still hold.
func (s *Service) ForceDeclare(ctx context.Context, staffID string, start, end time.Time, reason string) (*model.Absence, error) {
	return s.declare(ctx, staffID, start, end, reason, true)
}

func (s *Service) declare(ctx context.Context, staffID string, start, end time.Time, reason string, force bool) (*model.Absence, error) {
	start = calendar.DateOf(start)
	end = calendar.DateOf(end)

	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	if !force && end.Before(calendar.DateOf(s.now())) {
		return nil, ErrPastRange
	}

	overlapping, err := s.store.CountOverlapping(ctx, staffID, start, end)
	if err != nil {
		return nil, err
	}
	if overlapping > 0 {
		return nil, ErrOverlap
	}

	a := &model.Absence{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
		CreatedAt: s.now(),
	}
	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes one of the staff member's own records. A record that is
// already gone is reported as ErrNotFound and treated as handled.
func (s *Service) Delete(ctx context.Context, id, staffID string) error {
	deleted, err := s.store.Delete(ctx, id, staffID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Clear wipes every record. Administrative bulk operation.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	return s.store.Clear(ctx)
}

// SweepExpired deletes records whose end date is more than one day past, so
// an absence ending today stays visible through its last day.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := calendar.DateOf(now).AddDate(0, 0, -1)
	n, err := s.store.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("swept expired absences", "count", n)
	}
	return n, nil
}

func (s *Service) ListUpcoming(ctx context.Context, limit int) ([]model.Absence, error) {
	return s.store.ListUpcoming(ctx, calendar.DateOf(s.now()), limit)
}

func (s *Service) ListMine(ctx context.Context, staffID string) ([]model.Absence, error) {
	return s.store.ListByStaff(ctx, staffID, calendar.DateOf(s.now()))
}

// Overlaps reports whether two inclusive date ranges share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !(aEnd.Before(bStart) || aStart.After(bEnd))
}
