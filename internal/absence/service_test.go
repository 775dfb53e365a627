package absence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/remember-rp/concierge/internal/model"
)

type memStore struct {
	absences map[string]model.Absence
}

func newMemStore() *memStore {
	return &memStore{absences: map[string]model.Absence{}}
}

func (m *memStore) CountOverlapping(_ context.Context, staffID string, start, end time.Time) (int, error) {
	n := 0
	for _, a := range m.absences {
		if a.StaffID == staffID && Overlaps(a.StartDate, a.EndDate, start, end) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Insert(_ context.Context, a *model.Absence) error {
	m.absences[a.ID] = *a
	return nil
}

func (m *memStore) ListUpcoming(_ context.Context, from time.Time, _ int) ([]model.Absence, error) {
	var out []model.Absence
	for _, a := range m.absences {
		if !a.EndDate.Before(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListByStaff(_ context.Context, staffID string, from time.Time) ([]model.Absence, error) {
	var out []model.Absence
	for _, a := range m.absences {
		if a.StaffID == staffID && !a.EndDate.Before(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id, staffID string) (bool, error) {
	a, ok := m.absences[id]
	if !ok || a.StaffID != staffID {
		return false, nil
	}
	delete(m.absences, id)
	return true, nil
}

func (m *memStore) DeleteEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, a := range m.absences {
		if a.EndDate.Before(cutoff) {
			delete(m.absences, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Clear(_ context.Context) (int64, error) {
	n := int64(len(m.absences))
	m.absences = map[string]model.Absence{}
	return n, nil
}

var absenceNow = time.Date(2024, 12, 17, 10, 0, 0, 0, time.UTC)

func date(day int) time.Time {
	return time.Date(2024, 12, day, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, logger).WithClock(func() time.Time { return absenceNow })
	return svc, store
}

func TestDeclareRejectsOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Declare(ctx, "staff-1", date(20), date(25), "holiday"); err != nil {
		t.Fatalf("first declare failed: %v", err)
	}
	if _, err := svc.Declare(ctx, "staff-1", date(24), date(26), ""); err != ErrOverlap {
		t.Fatalf("err = %v, want ErrOverlap", err)
	}
	// Sharing a single day still overlaps.
	if _, err := svc.Declare(ctx, "staff-1", date(25), date(28), ""); err != ErrOverlap {
		t.Fatalf("err = %v, want ErrOverlap for shared boundary day", err)
	}
	// The day after it ends is free.
	if _, err := svc.Declare(ctx, "staff-1", date(26), date(28), ""); err != nil {
		t.Fatalf("adjacent declare failed: %v", err)
	}
	// Another staff member is unaffected.
	if _, err := svc.Declare(ctx, "staff-2", date(20), date(25), ""); err != nil {
		t.Fatalf("other staff declare failed: %v", err)
	}
}

func TestDeclareValidatesRange(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Declare(ctx, "staff-1", date(25), date(20), ""); err != ErrInvalidRange {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	if _, err := svc.Declare(ctx, "staff-1", date(10), date(12), ""); err != ErrPastRange {
		t.Fatalf("err = %v, want ErrPastRange", err)
	}
	if len(store.absences) != 0 {
		t.Fatal("rejected declarations must store nothing")
	}

	// A range ending today is still declarable.
	if _, err := svc.Declare(ctx, "staff-1", date(15), date(17), ""); err != nil {
		t.Fatalf("declare ending today failed: %v", err)
	}
}

func TestForceDeclareSkipsPastGuardOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ForceDeclare(ctx, "staff-1", date(10), date(12), "backfill"); err != nil {
		t.Fatalf("force declare of past range failed: %v", err)
	}
	// Range order and overlap still apply.
	if _, err := svc.ForceDeclare(ctx, "staff-1", date(12), date(10), ""); err != ErrInvalidRange {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	if _, err := svc.ForceDeclare(ctx, "staff-1", date(11), date(13), ""); err != ErrOverlap {
		t.Fatalf("err = %v, want ErrOverlap", err)
	}
}

func TestDeleteOwnRecordOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Declare(ctx, "staff-1", date(20), date(22), "")
	if err != nil {
		t.Fatalf("declare failed: %v", err)
	}
	if err := svc.Delete(ctx, a.ID, "staff-2"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound for foreign record", err)
	}
	if err := svc.Delete(ctx, a.ID, "staff-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Delete(ctx, a.ID, "staff-1"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound on second delete", err)
	}
}

func TestSweepKeepsAbsenceEndingToday(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	endsToday, err := svc.Declare(ctx, "staff-1", date(15), date(17), "")
	if err != nil {
		t.Fatalf("declare failed: %v", err)
	}
	ended, err := svc.ForceDeclare(ctx, "staff-2", date(10), date(12), "")
	if err != nil {
		t.Fatalf("force declare failed: %v", err)
	}

	n, err := svc.SweepExpired(ctx, absenceNow)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := store.absences[endsToday.ID]; !ok {
		t.Fatal("absence ending today was swept")
	}
	if _, ok := store.absences[ended.ID]; ok {
		t.Fatal("ended absence survived the sweep")
	}
}

func TestOverlaps(t *testing.T) {
	if !Overlaps(date(20), date(25), date(25), date(28)) {
		t.Fatal("ranges sharing a day must overlap")
	}
	if Overlaps(date(20), date(25), date(26), date(28)) {
		t.Fatal("adjacent ranges must not overlap")
	}
	if !Overlaps(date(20), date(25), date(18), date(30)) {
		t.Fatal("containment must overlap")
	}
}
