package radio

import (
	"context"

	"github.com/soundcult/listenparty/internal/dependencies/random"
	"github.com/soundcult/listenparty/internal/model"
)

// Catalog serves random picks from a fixed track list, skipping the seed
// track so the queue does not immediately repeat what is playing
type Catalog struct {
	tracks []model.Track
	random random.Random
}

// NewCatalog creates a catalog-backed radio source
func NewCatalog(tracks []model.Track, rnd random.Random) *Catalog {
	return &Catalog{
		tracks: tracks,
		random: rnd,
	}
}

var _ Source = (*Catalog)(nil)

// NextTracks returns up to n random distinct tracks from the catalog
func (c *Catalog) NextTracks(ctx context.Context, seed *model.Track, n int) ([]model.Track, error) {
	var candidates []model.Track
	for _, t := range c.tracks {
		if seed != nil && t.ID == seed.ID {
			continue
		}
		candidates = append(candidates, t)
	}

	var picks []model.Track
	for len(picks) < n && len(candidates) > 0 {
		i := c.random.Intn(len(candidates))
		picks = append(picks, candidates[i])
		candidates = append(candidates[:i], candidates[i+1:]...)
	}
	return picks, nil
}
