package contracts

import (
	"context"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// SportDataset is the pluggable interface for one league's player data.
// Implementations read static input; the catalog owns indexing and caching.
type SportDataset interface {
	// Identification
	GetSport() models.Sport  // "NBA", "NFL", "MLB"
	GetDisplayName() string // "NBA Basketball"

	// Load returns the data set's records in original order.
	// The catalog validates the result before indexing it.
	Load(ctx context.Context) ([]models.PlayerRecord, error)
}
