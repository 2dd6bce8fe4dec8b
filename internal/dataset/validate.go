package dataset

import (
	"fmt"
	"strings"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// ValidationError describes the first invalid record found in a data set
type ValidationError struct {
	Sport  models.Sport
	Index  int
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s record %d (id %q): %s", e.Sport, e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s record %d: %s", e.Sport, e.Index, e.Reason)
}

// Validate checks a decoded data set once at load time.
// Missing sport tags are filled from the data set's sport; a tag that names a
// different league, an empty id or name, or a duplicate id rejects the whole set.
// The returned slice is the input slice, normalized in place.
func Validate(sport models.Sport, records []models.PlayerRecord) ([]models.PlayerRecord, error) {
	if !sport.IsKnown() {
		return nil, fmt.Errorf("unknown sport %q", sport)
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		r := &records[i]
		r.ID = strings.TrimSpace(r.ID)

		if r.ID == "" {
			return nil, &ValidationError{Sport: sport, Index: i, Reason: "missing id"}
		}
		if strings.TrimSpace(r.Name) == "" {
			return nil, &ValidationError{Sport: sport, Index: i, ID: r.ID, Reason: "missing name"}
		}

		switch {
		case r.Sport == "":
			r.Sport = sport
		case r.Sport != sport:
			// Exports sometimes write the tag in lower case
			if parsed, ok := models.ParseSport(string(r.Sport)); ok && parsed == sport {
				r.Sport = sport
				break
			}
			return nil, &ValidationError{
				Sport:  sport,
				Index:  i,
				ID:     r.ID,
				Reason: fmt.Sprintf("sport tag %q does not match data set", r.Sport),
			}
		}

		if first, dup := seen[r.ID]; dup {
			return nil, &ValidationError{
				Sport:  sport,
				Index:  i,
				ID:     r.ID,
				Reason: fmt.Sprintf("duplicate id (first seen at record %d)", first),
			}
		}
		seen[r.ID] = i
	}

	return records, nil
}
