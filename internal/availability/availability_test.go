package availability

import (
	"context"
	"testing"
	"time"

	"github.com/remember-rp/concierge/internal/model"
)

type memStore struct {
	appts []model.Appointment
}

func (m *memStore) ListNear(_ context.Context, at time.Time, within time.Duration) ([]model.Appointment, error) {
	var near []model.Appointment
	for _, a := range m.appts {
		if a.StartsAt.After(at.Add(-within)) && a.StartsAt.Before(at.Add(within)) {
			near = append(near, a)
		}
	}
	return near, nil
}

func TestIsAvailableInsideToleranceWindow(t *testing.T) {
	slot := time.Date(2024, 12, 20, 18, 0, 0, 0, time.UTC)
	idx := NewIndex(&memStore{appts: []model.Appointment{{ID: "a1", StartsAt: slot}}})

	cases := []struct {
		offset time.Duration
		free   bool
	}{
		{0, false},
		{10 * time.Minute, false},
		{-10 * time.Minute, false},
		{29*time.Minute + 59*time.Second, false},
		{-29*time.Minute - 59*time.Second, false},
		{30 * time.Minute, true},
		{-30 * time.Minute, true},
		{31 * time.Minute, true},
	}
	for _, c := range cases {
		free, err := idx.IsAvailable(context.Background(), slot.Add(c.offset))
		if err != nil {
			t.Fatalf("IsAvailable(%v) failed: %v", c.offset, err)
		}
		if free != c.free {
			t.Fatalf("IsAvailable(offset %v) = %v, want %v", c.offset, free, c.free)
		}
	}
}

func TestConflictsIsStrict(t *testing.T) {
	a := time.Date(2024, 12, 20, 18, 0, 0, 0, time.UTC)
	if !Conflicts(a, a.Add(Tolerance-time.Second)) {
		t.Fatal("one second inside the window must conflict")
	}
	if Conflicts(a, a.Add(Tolerance)) {
		t.Fatal("exactly Tolerance apart must not conflict")
	}
	if !Conflicts(a.Add(-time.Minute), a) {
		t.Fatal("conflict check must be symmetric")
	}
}
