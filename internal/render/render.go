// Package render builds the plain-text bodies of the status panels. Pure
// functions of store data and a caller-supplied now; transport and styling
// belong to the platform gateway.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/remember-rp/concierge/internal/calendar"
	"github.com/remember-rp/concierge/internal/model"
)

// Planning renders the interview schedule grouped by day.
func Planning(appts []model.Appointment, now time.Time) string {
	var b strings.Builder
	b.WriteString("INTERVIEW SCHEDULE\n")

	if len(appts) == 0 {
		b.WriteString("\nNo interviews scheduled\n")
		return b.String()
	}

	var currentDay time.Time
	for _, a := range appts {
		day := calendar.DateOf(a.StartsAt)
		if !day.Equal(currentDay) {
			currentDay = day
			fmt.Fprintf(&b, "\n%s\n", day.Format("Monday 2 January"))
		}
		fmt.Fprintf(&b, "  %s  %s > %s\n", a.StartsAt.Format("15h04"), a.RequesterID, a.CounterpartID)
	}

	fmt.Fprintf(&b, "\nUpdated %s | %d interview(s)\n", now.Format("2 Jan 15:04"), len(appts))
	return b.String()
}

// AbsenceBoard renders declared absences split into current and upcoming.
func AbsenceBoard(absences []model.Absence, now time.Time) string {
	today := calendar.DateOf(now)

	var b strings.Builder
	b.WriteString("STAFF ABSENCES\n")

	if len(absences) == 0 {
		b.WriteString("\nNo absences declared\n")
		return b.String()
	}

	var current, upcoming []model.Absence
	for _, a := range absences {
		if !a.StartDate.After(today) && !a.EndDate.Before(today) {
			current = append(current, a)
		} else if a.StartDate.After(today) {
			upcoming = append(upcoming, a)
		}
	}

	if len(current) > 0 {
		b.WriteString("\nCurrent\n")
		for _, a := range current {
			daysLeft := int(a.EndDate.Sub(today).Hours() / 24)
			left := "last day"
			if daysLeft > 0 {
				left = fmt.Sprintf("%d day(s) left", daysLeft)
			}
			fmt.Fprintf(&b, "  %s  %s -> %s (%s)  %s\n",
				a.StaffID, a.StartDate.Format("2 Jan"), a.EndDate.Format("2 Jan"), left, reasonOr(a.Reason))
		}
	}

	if len(upcoming) > 0 {
		b.WriteString("\nUpcoming\n")
		for _, a := range upcoming {
			in := int(a.StartDate.Sub(today).Hours() / 24)
			fmt.Fprintf(&b, "  %s (in %d day(s))  %s -> %s  %s\n",
				a.StaffID, in, a.StartDate.Format("2 Jan"), a.EndDate.Format("2 Jan"), reasonOr(a.Reason))
		}
	}

	fmt.Fprintf(&b, "\nUpdated %s | %d currently absent\n", now.Format("2 Jan 15:04"), len(current))
	return b.String()
}

// Links renders the useful-links panel.
func Links(links []model.Link) string {
	var b strings.Builder
	b.WriteString("USEFUL LINKS\n")

	if len(links) == 0 {
		b.WriteString("\nNo links configured yet\n")
		return b.String()
	}
	for _, l := range links {
		fmt.Fprintf(&b, "\n%s: %s\n", l.Label, l.URL)
	}
	return b.String()
}

func reasonOr(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "unspecified"
	}
	return reason
}
