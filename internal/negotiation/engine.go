package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/remember-rp/concierge/internal/availability"
	"github.com/remember-rp/concierge/internal/calendar"
	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/internal/storage"
)

var (
	// ErrNotFound covers sessions and appointments that no longer exist,
	// including sessions discarded by lazy expiry. Callers report "already
	// handled" and move on.
	ErrNotFound = errors.New("negotiation not found")

	// ErrNotAddressed rejects a transition attempted by a party whose
	// decision is not currently pending.
	ErrNotAddressed = errors.New("not the addressed party")
)

type Availability interface {
	IsAvailable(ctx context.Context, at time.Time) (bool, error)
}

// Appointments is the persistence boundary for committed slots. Commit is the
// single atomic operation of the whole flow: it must re-validate the
// tolerance window inside its own transaction and return
// availability.ErrSlotConflict when a racer won.
type Appointments interface {
	Commit(ctx context.Context, appt *model.Appointment) error
	Cancel(ctx context.Context, id string) (*model.Appointment, error)
}

// Notifier delivers private messages. All engine notifications are
// best-effort: a committed appointment is never rolled back because a
// notification failed.
type Notifier interface {
	NotifyParty(ctx context.Context, partyRef, message string) error
	NotifyOversight(ctx context.Context, message string) error
}

type Config struct {
	DecisionDeadline time.Duration
	DefaultHour      int
}

type Engine struct {
	sessions SessionStore
	avail    Availability
	appts    Appointments
	notify   Notifier
	logger   *slog.Logger
	now      func() time.Time
	deadline time.Duration
	defHour  int
}

func NewEngine(sessions SessionStore, avail Availability, appts Appointments, notify Notifier, logger *slog.Logger, cfg Config) *Engine {
	if cfg.DecisionDeadline <= 0 {
		cfg.DecisionDeadline = time.Hour
	}
	if cfg.DefaultHour <= 0 || cfg.DefaultHour > 23 {
		cfg.DefaultHour = calendar.DefaultHour
	}
	return &Engine{
		sessions: sessions,
		avail:    avail,
		appts:    appts,
		notify:   notify,
		logger:   logger,
		now:      time.Now,
		deadline: cfg.DecisionDeadline,
		defHour:  cfg.DefaultHour,
	}
}

// WithClock overrides the engine clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Propose starts a negotiation: the initiator picks a day and hour, the slot
// is resolved and availability-checked, and the counterpart is asked to
// decide before the deadline. A conflicting slot creates no session.
func (e *Engine) Propose(ctx context.Context, initiatorID, counterpartID, channelRef, dayLabel, hourLabel string) (*Session, error) {
	day, err := calendar.ParseDay(dayLabel)
	if err != nil {
		return nil, err
	}

	now := e.now()
	slot := calendar.NextOccurrence(day, hourLabel, e.defHour, now)

	free, err := e.avail.IsAvailable(ctx, slot)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, availability.ErrSlotConflict
	}

	sess := &Session{
		ID:            uuid.NewString(),
		InitiatorID:   initiatorID,
		CounterpartID: counterpartID,
		ChannelRef:    channelRef,
		DayLabel:      dayLabel,
		HourLabel:     hourLabel,
		SlotAt:        slot,
		Status:        StatusAwaitingCounterpart,
		ExpiresAt:     now.Add(e.deadline),
		CreatedAt:     now,
	}
	if err := e.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	e.bestEffortNotify(ctx, counterpartID, fmt.Sprintf(
		"%s requested an interview on %s. Accept or counter-propose before %s.",
		initiatorID, slot.Format("Monday 2 January 15h04"), sess.ExpiresAt.Format(time.RFC3339)))
	return sess, nil
}

// Accept commits the proposed slot. Availability is re-validated here and
// again inside the store's transaction, so of two negotiations racing for
// the same window at most one commits; the other keeps its session alive and
// sees the conflict itself.
func (e *Engine) Accept(ctx context.Context, sessionID, actorID string) (*model.Appointment, error) {
	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.requireAddressee(sess, actorID); err != nil {
		return nil, err
	}

	free, err := e.avail.IsAvailable(ctx, sess.SlotAt)
	if err != nil {
		return nil, err
	}
	if !free {
		// Surface the conflict to the actor only; the session survives so a
		// counter-proposal can follow.
		return nil, availability.ErrSlotConflict
	}

	now := e.now()
	appt := &model.Appointment{
		ID:            uuid.NewString(),
		RequesterID:   sess.InitiatorID,
		CounterpartID: sess.CounterpartID,
		DayLabel:      sess.DayLabel,
		HourLabel:     sess.HourLabel,
		StartsAt:      sess.SlotAt,
		ChannelRef:    sess.ChannelRef,
		CreatedAt:     now,
	}
	if err := e.appts.Commit(ctx, appt); err != nil {
		return nil, err
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		e.logger.Warn("accepted session cleanup failed", "session_id", sessionID, "err", err)
	}

	when := appt.StartsAt.Format("Monday 2 January 15h04")
	e.bestEffortNotify(ctx, sess.InitiatorID, "Interview confirmed: "+when)
	e.bestEffortNotify(ctx, sess.CounterpartID, "Interview confirmed: "+when)
	if err := e.notify.NotifyOversight(ctx, fmt.Sprintf(
		"New interview: %s with %s and %s", when, sess.InitiatorID, sess.CounterpartID)); err != nil {
		e.logger.Warn("oversight notification failed", "err", err)
	}
	return appt, nil
}

// CounterPropose discards the pending slot and sends a new one back to the
// other party. No availability check happens here; it is deferred to the
// eventual accept.
func (e *Engine) CounterPropose(ctx context.Context, sessionID, actorID, dayLabel, hourLabel string) (*Session, error) {
	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.requireAddressee(sess, actorID); err != nil {
		return nil, err
	}

	day, err := calendar.ParseDay(dayLabel)
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess.DayLabel = dayLabel
	sess.HourLabel = hourLabel
	sess.SlotAt = calendar.NextOccurrence(day, hourLabel, e.defHour, now)
	sess.ExpiresAt = now.Add(e.deadline)
	if sess.Status == StatusAwaitingCounterpart {
		sess.Status = StatusAwaitingInitiator
	} else {
		sess.Status = StatusAwaitingCounterpart
	}

	if err := e.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	addressee, _ := sess.Addressee()
	e.bestEffortNotify(ctx, addressee, fmt.Sprintf(
		"%s proposed a new time: %s", actorID, sess.SlotAt.Format("Monday 2 January 15h04")))
	return sess, nil
}

// Restart discards the session so the actor can start over with a fresh
// proposal. It is not a backward transition; the caller issues a new Propose.
func (e *Engine) Restart(ctx context.Context, sessionID, actorID string) error {
	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := e.requireAddressee(sess, actorID); err != nil {
		return err
	}
	return e.sessions.Delete(ctx, sessionID)
}

// CancelAppointment removes a committed appointment, independent of any
// negotiation. A missing id is a benign race. The other party hears about it
// best-effort.
func (e *Engine) CancelAppointment(ctx context.Context, id, actorID string) (*model.Appointment, error) {
	appt, err := e.appts.Cancel(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	when := appt.StartsAt.Format("Monday 2 January 15h04")
	for _, party := range []string{appt.RequesterID, appt.CounterpartID} {
		if party != actorID {
			e.bestEffortNotify(ctx, party, "Interview cancelled: "+when)
		}
	}
	return appt, nil
}

// load fetches a session and applies the lazy expiry guard: an expired
// session is discarded on sight and reported as not found, with no
// user-visible error beyond that. An expired session can never be accepted.
func (e *Engine) load(ctx context.Context, id string) (*Session, error) {
	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.Expired(e.now()) {
		if err := e.sessions.Delete(ctx, id); err != nil {
			e.logger.Warn("expired session cleanup failed", "session_id", id, "err", err)
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

func (e *Engine) requireAddressee(sess *Session, actorID string) error {
	addressee, ok := sess.Addressee()
	if !ok || addressee != actorID {
		return ErrNotAddressed
	}
	return nil
}

func (e *Engine) bestEffortNotify(ctx context.Context, partyRef, message string) {
	if err := e.notify.NotifyParty(ctx, partyRef, message); err != nil {
		e.logger.Warn("party notification failed", "party", partyRef, "err", err)
	}
}
