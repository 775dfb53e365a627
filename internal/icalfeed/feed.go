package icalfeed

import (
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/remember-rp/concierge/internal/model"
)

// EventLength is the nominal interview duration used for exported events.
const EventLength = 30 * time.Minute

// Serialize renders upcoming appointments as an iCalendar document, one
// 30-minute VEVENT per appointment.
func Serialize(appts []model.Appointment, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//remember-rp//concierge//EN")

	for _, a := range appts {
		e := cal.AddEvent(a.ID + "@concierge")
		e.SetDtStampTime(now)
		e.SetCreatedTime(a.CreatedAt)
		e.SetStartAt(a.StartsAt)
		e.SetEndAt(a.StartsAt.Add(EventLength))
		e.SetSummary("Interview: " + a.RequesterID + " / " + a.CounterpartID)
		if a.ChannelRef != "" {
			e.SetLocation(a.ChannelRef)
		}
	}
	return cal.Serialize()
}
