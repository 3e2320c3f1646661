package feed

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateCollectionID accepts Notion database and data source ids, with
// or without dashes.
func ValidateCollectionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("collection id is required")
	}
	if len(id) != 32 && len(id) != 36 {
		return fmt.Errorf("invalid collection id %q", id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid collection id %q: %w", id, err)
	}
	return nil
}
