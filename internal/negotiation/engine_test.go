package negotiation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/remember-rp/concierge/internal/availability"
	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/internal/storage"
)

// memAppointments backs both the availability index and the commit port. Its
// Commit re-checks the tolerance window under the same lock, like the real
// repository does inside its transaction.
type memAppointments struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
}

func newMemAppointments() *memAppointments {
	return &memAppointments{appts: map[string]model.Appointment{}}
}

func (m *memAppointments) ListNear(_ context.Context, at time.Time, within time.Duration) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var near []model.Appointment
	for _, a := range m.appts {
		if a.StartsAt.After(at.Add(-within)) && a.StartsAt.Before(at.Add(within)) {
			near = append(near, a)
		}
	}
	return near, nil
}

func (m *memAppointments) Commit(_ context.Context, appt *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.appts {
		if availability.Conflicts(existing.StartsAt, appt.StartsAt) {
			return availability.ErrSlotConflict
		}
	}
	m.appts[appt.ID] = *appt
	return nil
}

func (m *memAppointments) Cancel(_ context.Context, id string) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(m.appts, id)
	return &a, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyParty(context.Context, string, string) error { return nil }
func (noopNotifier) NotifyOversight(context.Context, string) error     { return nil }

// 2024-12-17 is a Tuesday.
var testNow = time.Date(2024, 12, 17, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *MemorySessionStore, *memAppointments) {
	t.Helper()
	sessions := NewMemorySessionStore()
	appts := newMemAppointments()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(sessions, availability.NewIndex(appts), appts, noopNotifier{}, logger, Config{
		DecisionDeadline: time.Hour,
		DefaultHour:      18,
	}).WithClock(func() time.Time { return testNow })
	return engine, sessions, appts
}

func TestProposeCreatesAwaitingSession(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if sess.Status != StatusAwaitingCounterpart {
		t.Fatalf("status = %v, want awaiting_counterpart", sess.Status)
	}
	want := time.Date(2024, 12, 20, 20, 0, 0, 0, time.UTC)
	if !sess.SlotAt.Equal(want) {
		t.Fatalf("slot = %v, want %v", sess.SlotAt, want)
	}
	if addressee, ok := sess.Addressee(); !ok || addressee != "bob" {
		t.Fatalf("addressee = %q, want bob", addressee)
	}
	if _, err := sessions.Get(context.Background(), sess.ID); err != nil {
		t.Fatalf("session not stored: %v", err)
	}
}

func TestProposeConflictCreatesNoSession(t *testing.T) {
	engine, sessions, appts := newTestEngine(t)

	slot := time.Date(2024, 12, 20, 20, 0, 0, 0, time.UTC)
	appts.appts["existing"] = model.Appointment{ID: "existing", StartsAt: slot.Add(10 * time.Minute)}

	_, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != availability.ErrSlotConflict {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if len(sessions.sessions) != 0 {
		t.Fatalf("conflicting proposal left %d sessions behind", len(sessions.sessions))
	}
}

func TestAcceptCommitsAndDiscardsSession(t *testing.T) {
	engine, sessions, appts := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	appt, err := engine.Accept(context.Background(), sess.ID, "bob")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !appt.StartsAt.Equal(sess.SlotAt) {
		t.Fatalf("appointment at %v, want %v", appt.StartsAt, sess.SlotAt)
	}
	if appt.RequesterID != "alice" || appt.CounterpartID != "bob" {
		t.Fatalf("parties = %s/%s", appt.RequesterID, appt.CounterpartID)
	}
	if _, ok := appts.appts[appt.ID]; !ok {
		t.Fatal("appointment not committed")
	}
	if _, err := sessions.Get(context.Background(), sess.ID); err != storage.ErrNotFound {
		t.Fatalf("session should be gone, got err %v", err)
	}
}

func TestAcceptByWrongParty(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if _, err := engine.Accept(context.Background(), sess.ID, "alice"); err != ErrNotAddressed {
		t.Fatalf("err = %v, want ErrNotAddressed", err)
	}
	if _, err := engine.Accept(context.Background(), sess.ID, "mallory"); err != ErrNotAddressed {
		t.Fatalf("err = %v, want ErrNotAddressed", err)
	}
}

func TestAcceptConflictKeepsSessionAlive(t *testing.T) {
	engine, sessions, appts := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	// Another negotiation takes a slot inside the tolerance window first.
	appts.appts["winner"] = model.Appointment{ID: "winner", StartsAt: sess.SlotAt.Add(-15 * time.Minute)}

	if _, err := engine.Accept(context.Background(), sess.ID, "bob"); err != availability.ErrSlotConflict {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	// The losing session survives so bob can counter-propose.
	if _, err := sessions.Get(context.Background(), sess.ID); err != nil {
		t.Fatalf("session discarded after conflict: %v", err)
	}

	counter, err := engine.CounterPropose(context.Background(), sess.ID, "bob", "Saturday", "19h00")
	if err != nil {
		t.Fatalf("CounterPropose after conflict failed: %v", err)
	}
	if counter.Status != StatusAwaitingInitiator {
		t.Fatalf("status = %v, want awaiting_initiator", counter.Status)
	}
}

func TestCounterProposeFlipsAddressee(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	counter, err := engine.CounterPropose(context.Background(), sess.ID, "bob", "Saturday", "21h00")
	if err != nil {
		t.Fatalf("CounterPropose failed: %v", err)
	}
	if addressee, _ := counter.Addressee(); addressee != "alice" {
		t.Fatalf("addressee = %q, want alice", addressee)
	}
	want := time.Date(2024, 12, 21, 21, 0, 0, 0, time.UTC)
	if !counter.SlotAt.Equal(want) {
		t.Fatalf("slot = %v, want %v", counter.SlotAt, want)
	}

	// The initiator counters back; the counterpart owes the decision again.
	counter, err = engine.CounterPropose(context.Background(), sess.ID, "alice", "Sunday", "18h00")
	if err != nil {
		t.Fatalf("second CounterPropose failed: %v", err)
	}
	if addressee, _ := counter.Addressee(); addressee != "bob" {
		t.Fatalf("addressee = %q, want bob", addressee)
	}
}

func TestExpiredSessionIsDiscardedOnLoad(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	engine.WithClock(func() time.Time { return testNow.Add(2 * time.Hour) })

	if _, err := engine.Accept(context.Background(), sess.ID, "bob"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound for expired session", err)
	}
	if _, err := sessions.Get(context.Background(), sess.ID); err != storage.ErrNotFound {
		t.Fatalf("expired session not reaped, err = %v", err)
	}
}

func TestConcurrentAcceptsOneWins(t *testing.T) {
	engine, _, appts := newTestEngine(t)

	// Two negotiations over slots 10 minutes apart: inside one tolerance
	// window, so only one may commit.
	s1, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose 1 failed: %v", err)
	}
	s2, err := engine.Propose(context.Background(), "carol", "dave", "chan-2", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose 2 failed: %v", err)
	}
	// Nudge the second slot so the two are distinct but still conflicting.
	s2.SlotAt = s2.SlotAt.Add(10 * time.Minute)
	if err := engine.sessions.Put(context.Background(), s2); err != nil {
		t.Fatalf("session update failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = engine.Accept(context.Background(), s1.ID, "bob")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = engine.Accept(context.Background(), s2.ID, "dave")
	}()
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case availability.ErrSlotConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d, conflicts = %d, want exactly one of each", wins, conflicts)
	}
	if len(appts.appts) != 1 {
		t.Fatalf("%d appointments committed, want 1", len(appts.appts))
	}
}

func TestRestartDiscardsSession(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if err := engine.Restart(context.Background(), sess.ID, "bob"); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if _, err := sessions.Get(context.Background(), sess.ID); err != storage.ErrNotFound {
		t.Fatalf("session should be gone, err = %v", err)
	}
}

func TestCancelAppointment(t *testing.T) {
	engine, _, appts := newTestEngine(t)

	sess, err := engine.Propose(context.Background(), "alice", "bob", "chan-1", "Friday", "20h00")
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	appt, err := engine.Accept(context.Background(), sess.ID, "bob")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if _, err := engine.CancelAppointment(context.Background(), appt.ID, "alice"); err != nil {
		t.Fatalf("CancelAppointment failed: %v", err)
	}
	if len(appts.appts) != 0 {
		t.Fatal("appointment still present after cancellation")
	}
	// Cancelling again is a benign race.
	if _, err := engine.CancelAppointment(context.Background(), appt.ID, "alice"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
