package feed

import (
	"strings"

	"github.com/lysyi3m/notion-cal/app/notion"
)

const UntitledEvent = "Untitled Event"

// ExtractTitle reads the title property, accepting either a title or a
// rich text property.
func ExtractTitle(props map[string]notion.Property, name string) string {
	prop, ok := props[name]
	if !ok {
		return UntitledEvent
	}

	switch {
	case prop.Type == notion.PropertyTypeTitle && len(prop.Title) > 0:
		return joinPlainText(prop.Title)
	case prop.Type == notion.PropertyTypeRichText && len(prop.RichText) > 0:
		return joinPlainText(prop.RichText)
	}

	return UntitledEvent
}

// ExtractDescription returns "" when no description property is mapped or
// the mapped property is not non-empty rich text.
func ExtractDescription(props map[string]notion.Property, name string) string {
	if name == "" {
		return ""
	}

	prop, ok := props[name]
	if !ok || prop.Type != notion.PropertyTypeRichText || len(prop.RichText) == 0 {
		return ""
	}

	return joinPlainText(prop.RichText)
}

// ExtractDate returns nil when the record has no usable date, in which case
// the record is left out of the feed.
func ExtractDate(props map[string]notion.Property, name string) *notion.DateValue {
	prop, ok := props[name]
	if !ok || prop.Type != notion.PropertyTypeDate || prop.Date == nil {
		return nil
	}
	return prop.Date
}

func joinPlainText(fragments []notion.RichText) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f.PlainText)
	}
	return b.String()
}
