package negotiation

import "time"

// Status tracks which side of the negotiation owes a decision.
type Status int

const (
	StatusAwaitingCounterpart Status = iota
	StatusAwaitingInitiator
	StatusAccepted
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingCounterpart:
		return "awaiting_counterpart"
	case StatusAwaitingInitiator:
		return "awaiting_initiator"
	case StatusAccepted:
		return "accepted"
	case StatusAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Session is the ephemeral back-and-forth between a requester and a staff
// counterpart before a slot is committed. It terminates into an Appointment
// or is silently discarded; it never outlives ExpiresAt.
type Session struct {
	ID            string    `json:"id"`
	InitiatorID   string    `json:"initiator_id"`
	CounterpartID string    `json:"counterpart_id"`
	ChannelRef    string    `json:"channel_ref"`
	DayLabel      string    `json:"day_label"`
	HourLabel     string    `json:"hour_label"`
	SlotAt        time.Time `json:"slot_at"`
	Status        Status    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Addressee returns the party whose decision is currently pending. Only that
// party may transition the session.
func (s *Session) Addressee() (string, bool) {
	switch s.Status {
	case StatusAwaitingCounterpart:
		return s.CounterpartID, true
	case StatusAwaitingInitiator:
		return s.InitiatorID, true
	}
	return "", false
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
