package feed

import (
	"encoding/json"
	"strings"
)

// Mapping names the Notion properties that feed each calendar field.
type Mapping struct {
	Name        string `json:"name,omitempty" yaml:"name"`
	Date        string `json:"date,omitempty" yaml:"date"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// ParseMapping never fails. Invalid JSON, non-object payloads and
// non-string fields all degrade to empty values.
func ParseMapping(raw string) Mapping {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Mapping{}
	}

	fields, ok := value.(map[string]any)
	if !ok {
		return Mapping{}
	}

	return Mapping{
		Name:        stringField(fields, "name"),
		Date:        stringField(fields, "date"),
		Description: stringField(fields, "description"),
	}
}

// SerializeMapping trims every field and drops the empty ones.
func SerializeMapping(m Mapping) string {
	data, err := json.Marshal(m.Normalize())
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (m Mapping) Normalize() Mapping {
	return Mapping{
		Name:        strings.TrimSpace(m.Name),
		Date:        strings.TrimSpace(m.Date),
		Description: strings.TrimSpace(m.Description),
	}
}

// Complete reports whether both required fields are present.
func (m Mapping) Complete() bool {
	return m.Name != "" && m.Date != ""
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
