package feed

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

var dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const dateOnlyLayout = "2006-01-02"

// Layouts accepted for timed values. Values without an offset are read
// in the record's time zone, or time.Local when it has none.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// IsAllDay reports whether value carries only a date.
func IsAllDay(value string) bool {
	return dateOnlyPattern.MatchString(value)
}

// ParseDateOnly parses a strict YYYY-MM-DD value.
func ParseDateOnly(value string) (Date, error) {
	if !IsAllDay(value) {
		return Date{}, fmt.Errorf("not a date-only value: %q", value)
	}

	t, err := time.Parse(dateOnlyLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}

	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays adds n calendar days. The arithmetic runs on UTC midnight.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseInstant parses a timed Notion value, reading offset-less values in loc.
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range instantLayouts {
		var t time.Time
		var err error
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, loc)
		}
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", value)
}

// Location resolves a Notion time_zone name. Missing or unknown zones
// fall back to time.Local.
func Location(timeZone *string) *time.Location {
	if timeZone == nil || *timeZone == "" {
		return time.Local
	}

	loc, err := time.LoadLocation(*timeZone)
	if err != nil {
		slog.Debug("Unknown record time zone", "time_zone", *timeZone, "error", err)
		return time.Local
	}

	return loc
}

// ParseEventTime turns a Notion start or end value into an EventTime.
func ParseEventTime(value string, loc *time.Location) (EventTime, error) {
	if IsAllDay(value) {
		d, err := ParseDateOnly(value)
		if err != nil {
			return EventTime{}, err
		}
		return EventTime{AllDay: true, Date: d}, nil
	}

	t, err := ParseInstant(value, loc)
	if err != nil {
		return EventTime{}, err
	}
	return EventTime{Instant: t}, nil
}

// EventSpan computes the start and exclusive end of an event. Notion ends
// are inclusive for all-day ranges, so those move forward one day. A start
// and end of different kinds are rejected. Offset-less timed values are
// read in loc.
func EventSpan(start string, end *string, loc *time.Location) (EventTime, *EventTime, error) {
	s, err := ParseEventTime(start, loc)
	if err != nil {
		return EventTime{}, nil, fmt.Errorf("invalid start: %w", err)
	}

	if end == nil || *end == "" {
		return s, nil, nil
	}

	if s.AllDay {
		if !IsAllDay(*end) {
			return EventTime{}, nil, fmt.Errorf("all-day start with timed end %q", *end)
		}
		d, err := ParseDateOnly(*end)
		if err != nil {
			return EventTime{}, nil, fmt.Errorf("invalid end: %w", err)
		}
		e := EventTime{AllDay: true, Date: d.AddDays(1)}
		return s, &e, nil
	}

	if IsAllDay(*end) {
		return EventTime{}, nil, fmt.Errorf("timed start with all-day end %q", *end)
	}
	t, err := ParseInstant(*end, loc)
	if err != nil {
		return EventTime{}, nil, fmt.Errorf("invalid end: %w", err)
	}
	e := EventTime{Instant: t}
	return s, &e, nil
}
