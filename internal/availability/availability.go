package availability

import (
	"context"
	"errors"
	"time"

	"github.com/remember-rp/concierge/internal/model"
)

// Tolerance is the band around a slot inside which another appointment counts
// as the same conflict. Two requests 10 minutes apart collide even when their
// day/hour labels differ.
const Tolerance = 30 * time.Minute

// ErrSlotConflict is returned when a slot is inside the tolerance window of a
// committed appointment. Commit paths return it from their own transaction so
// racing negotiations observe the conflict instead of double-booking.
var ErrSlotConflict = errors.New("slot already taken")

type Store interface {
	ListNear(ctx context.Context, at time.Time, within time.Duration) ([]model.Appointment, error)
}

type Index struct {
	store Store
}

func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// IsAvailable reports whether no committed appointment starts strictly within
// Tolerance of at. It is a read-side hint only; the authoritative check runs
// again inside the commit transaction.
func (i *Index) IsAvailable(ctx context.Context, at time.Time) (bool, error) {
	near, err := i.store.ListNear(ctx, at, Tolerance)
	if err != nil {
		return false, err
	}
	for _, appt := range near {
		if Conflicts(appt.StartsAt, at) {
			return false, nil
		}
	}
	return true, nil
}

// Conflicts reports whether two slot instants fall inside one tolerance
// window. The comparison is strict: exactly Tolerance apart does not
// conflict.
func Conflicts(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < Tolerance
}
