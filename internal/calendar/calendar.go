package calendar

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is used when an hour label carries no usable digits.
const DefaultHour = 18

var ErrUnknownDay = errors.New("unknown day label")
var ErrBadDate = errors.New("unparsable date")

// weekOrder is the presentation order for day options (Monday first).
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// ParseDay maps one of the seven fixed day labels to a weekday.
func ParseDay(label string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	case "sunday":
		return time.Sunday, nil
	}
	return 0, ErrUnknownDay
}

// ParseHourLabel extracts the digits of a free-form hour label ("18h00",
// "18:00", "18") and reduces them to a 0-23 hour. The second return is false
// when the label yields no valid hour.
func ParseHourLabel(label string) (int, bool) {
	var digits strings.Builder
	for _, r := range label {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	if n >= 100 {
		n /= 100
	}
	if n < 0 || n > 23 {
		return 0, false
	}
	return n, true
}

// NextOccurrence resolves a weekday plus an hour label to the next absolute
// slot after now. Naming the current weekday at a past-or-current hour rolls
// a full week forward, never "later today". An unparsable hour label falls
// back to defaultHour.
func NextOccurrence(day time.Weekday, hourLabel string, defaultHour int, now time.Time) time.Time {
	hour, ok := ParseHourLabel(hourLabel)
	if !ok {
		hour = defaultHour
		if hour < 0 || hour > 23 {
			hour = DefaultHour
		}
	}

	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	if daysAhead == 0 && now.Hour() >= hour {
		daysAhead = 7
	}

	target := now.AddDate(0, 0, daysAhead)
	return time.Date(target.Year(), target.Month(), target.Day(), hour, 0, 0, 0, now.Location())
}

// DayOption pairs a day label with the concrete date of its next occurrence.
type DayOption struct {
	Day  time.Weekday
	Date time.Time
}

// Label renders the option for a selection menu, e.g. "Monday 23 December".
func (o DayOption) Label() string {
	return o.Date.Format("Monday 2 January")
}

// UpcomingDays returns one option per weekday, each resolved to its next
// occurrence starting tomorrow. Today's weekday resolves a full week out.
func UpcomingDays(now time.Time) []DayOption {
	options := make([]DayOption, 0, len(weekOrder))
	for _, day := range weekOrder {
		daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
		if daysAhead == 0 {
			daysAhead = 7
		}
		target := now.AddDate(0, 0, daysAhead)
		options = append(options, DayOption{
			Day:  day,
			Date: time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, now.Location()),
		})
	}
	return options
}

// DateOf truncates an instant to its calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDate accepts "DD/MM/YYYY", "DD/MM" and "YYYY-MM-DD". A DD/MM date that
// already passed this year rolls to the next year.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.ParseInLocation("02/01/2006", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("02/01", s, now.Location()); err == nil {
		t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		if t.Before(DateOf(now)) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}
	return time.Time{}, ErrBadDate
}
