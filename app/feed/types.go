package feed

import (
	"errors"
	"time"
)

var (
	ErrNotConfigured  = errors.New("feed is not configured")
	ErrInvalidMapping = errors.New("invalid property mapping")
	ErrQueryRejected  = errors.New("notion rejected the query")
	ErrUpstream       = errors.New("notion query failed")
	ErrInvalidEvent   = errors.New("invalid calendar event")
)

// Calendar event types

// EventTime is either a calendar day (all-day events) or an instant.
type EventTime struct {
	AllDay  bool
	Date    Date
	Instant time.Time
}

func (t EventTime) IsZero() bool {
	if t.AllDay {
		return t.Date.IsZero()
	}
	return t.Instant.IsZero()
}

type CalendarEvent struct {
	UID         string // source page id
	Title       string
	Description string
	URL         string
	Start       EventTime
	End         *EventTime    // exclusive
	Duration    time.Duration // set only for timed events without an end
}

func (e CalendarEvent) AllDay() bool {
	return e.Start.AllDay
}

// Configuration types

// StaticConfig is a feed defined on disk instead of through OAuth.
type StaticConfig struct {
	ID         string  `yaml:"-"` // Derived from filename (without .yml extension)
	Name       string  `yaml:"name"`
	Token      string  `yaml:"token"`
	DatabaseID string  `yaml:"database_id"`
	Mapping    Mapping `yaml:"mapping"`
}
