package model

import "time"

// Appointment is a committed interview slot between a requester and a staff
// counterpart. No two live appointments start within 30 minutes of each
// other; the appointments table enforces this with an exclusion constraint.
type Appointment struct {
	ID            string
	RequesterID   string
	CounterpartID string
	DayLabel      string
	HourLabel     string
	StartsAt      time.Time
	ChannelRef    string
	CreatedAt     time.Time
}

// Absence is an inclusive calendar-date range during which a staff member is
// away. Ranges belonging to one staff member never intersect.
type Absence struct {
	ID        string
	StaffID   string
	StartDate time.Time // date-only, midnight
	EndDate   time.Time // date-only, midnight, inclusive
	Reason    string
	CreatedAt time.Time
}

// PanelRef points at the single live backing message for a panel key.
type PanelRef struct {
	Key        string
	MessageRef string
	ChannelRef string
}

// Link is a labeled URL shown on the links panel.
type Link struct {
	Label string
	URL   string
}
