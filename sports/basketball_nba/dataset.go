package basketball_nba

import (
	_ "embed"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

//go:embed data/players.json
var playersJSON []byte

// New returns the bundled NBA data set. NBA is the original single-sport
// data set, so its bare ids are what older list references stored.
func New() *dataset.Embedded {
	return dataset.NewEmbedded(models.SportNBA, playersJSON)
}
