package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/lysyi3m/notion-cal/app/cfg"
)

type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Run encodes events as a VCALENDAR document. A single structurally invalid
// event rejects the whole document.
func (g *Generator) Run(calendarName string, events []CalendarEvent) (string, error) {
	for i, event := range events {
		if err := validateEvent(event); err != nil {
			return "", fmt.Errorf("event %d: %w", i, err)
		}
	}

	cal := ics.NewCalendar()
	cal.SetProductId(fmt.Sprintf("-//Notion Cal//%s//EN", cfg.GetVersion()))
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(calendarName)

	stamp := g.now().UTC()

	for _, event := range events {
		ve := cal.AddEvent(event.UID)
		ve.SetDtStampTime(stamp)

		if event.Start.AllDay {
			ve.SetAllDayStartAt(event.Start.Date.Time())
		} else {
			ve.SetStartAt(event.Start.Instant.UTC())
		}

		switch {
		case event.End != nil && event.End.AllDay:
			ve.SetAllDayEndAt(event.End.Date.Time())
		case event.End != nil:
			ve.SetEndAt(event.End.Instant.UTC())
		case event.Duration > 0:
			ve.SetProperty(ics.ComponentPropertyDuration, formatDuration(event.Duration))
		}

		ve.SetSummary(event.Title)
		if event.Description != "" {
			ve.SetDescription(event.Description)
		}
		if event.URL != "" {
			ve.SetURL(event.URL)
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize calendar: %w", err)
	}

	return buf.String(), nil
}

func validateEvent(event CalendarEvent) error {
	if event.UID == "" {
		return fmt.Errorf("%w: missing uid", ErrInvalidEvent)
	}
	if event.Start.IsZero() {
		return fmt.Errorf("%w: missing start for %s", ErrInvalidEvent, event.UID)
	}
	if event.End != nil && event.End.AllDay != event.Start.AllDay {
		return fmt.Errorf("%w: mixed start and end kinds for %s", ErrInvalidEvent, event.UID)
	}
	return nil
}

// formatDuration renders an RFC 5545 duration such as PT1H or PT1H30M.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	var b strings.Builder
	b.WriteString("PT")
	if h := int(d / time.Hour); h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m := int(d % time.Hour / time.Minute); m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s := int(d % time.Minute / time.Second); s > 0 || b.Len() == 2 {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
