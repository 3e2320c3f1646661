package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/notion"
)

var ErrNoDate = errors.New("no usable date property")

// Assembler turns a configured feed into an ICS document.
type Assembler struct {
	paginator *Paginator
	sources   SourceFactory
	generator GeneratorInterface
}

type GeneratorInterface interface {
	Run(calendarName string, events []CalendarEvent) (string, error)
}

var _ GeneratorInterface = (*Generator)(nil)

func NewAssembler(paginator *Paginator, sources SourceFactory, generator GeneratorInterface) *Assembler {
	return &Assembler{
		paginator: paginator,
		sources:   sources,
		generator: generator,
	}
}

// Result is an assembled calendar.
type Result struct {
	Body   string
	Events int
}

// Run fails with ErrNotConfigured before any Notion call when the feed has
// no collection id or an incomplete mapping.
func (a *Assembler) Run(ctx context.Context, feed database.Feed) (*Result, error) {
	mapping, err := Readiness(feed)
	if err != nil {
		return nil, err
	}

	pages, err := a.paginator.Collect(ctx, a.sources(feed.AccessToken), feed.DatabaseID, mapping.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	events := BuildEvents(pages, mapping)

	body, err := a.generator.Run(CalendarName(feed), events)
	if err != nil {
		return nil, fmt.Errorf("failed to generate calendar: %w", err)
	}

	slog.Debug("Feed assembled", "feed", feed.ID, "pages", len(pages), "events", len(events))

	return &Result{Body: body, Events: len(events)}, nil
}

// Readiness returns the parsed mapping of a feed that can be served.
func Readiness(feed database.Feed) (Mapping, error) {
	if feed.DatabaseID == "" {
		return Mapping{}, ErrNotConfigured
	}

	mapping := ParseMapping(feed.Properties)
	if !mapping.Complete() {
		return Mapping{}, ErrInvalidMapping
	}

	return mapping, nil
}

func CalendarName(feed database.Feed) string {
	if feed.DisplayName != "" {
		return feed.DisplayName
	}
	return "Notion Calendar"
}

// BuildEvents keeps source order and skips records that cannot become an event.
func BuildEvents(pages []notion.Page, mapping Mapping) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(pages))

	for _, page := range pages {
		event, err := BuildEvent(page, mapping)
		if err != nil {
			slog.Debug("Skipping record", "page", page.ID, "reason", err)
			continue
		}
		events = append(events, event)
	}

	return events
}

func BuildEvent(page notion.Page, mapping Mapping) (CalendarEvent, error) {
	date := ExtractDate(page.Properties, mapping.Date)
	if date == nil {
		return CalendarEvent{}, ErrNoDate
	}

	start, end, err := EventSpan(date.Start, date.End, Location(date.TimeZone))
	if err != nil {
		return CalendarEvent{}, err
	}

	event := CalendarEvent{
		UID:         page.ID,
		Title:       ExtractTitle(page.Properties, mapping.Name),
		Description: ExtractDescription(page.Properties, mapping.Description),
		URL:         page.URL,
		Start:       start,
		End:         end,
	}

	if end == nil && !start.AllDay {
		event.Duration = time.Hour
	}

	return event, nil
}
