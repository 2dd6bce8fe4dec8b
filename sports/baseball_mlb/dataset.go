package baseball_mlb

import (
	_ "embed"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

//go:embed data/players.json
var playersJSON []byte

// New returns the bundled MLB data set
func New() *dataset.Embedded {
	return dataset.NewEmbedded(models.SportMLB, playersJSON)
}
