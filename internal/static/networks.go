package static

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog/log"

	"github.com/aston-transit/backend/internal/config"
	"github.com/aston-transit/backend/internal/gtfs"
	"github.com/aston-transit/backend/internal/network"
)

// ErrNoFeed is returned when the GTFS directory has not been populated yet
var ErrNoFeed = errors.New("GTFS data not available")

// Networks builds raw networks from the extracted feed and caches them per
// feed version and collection buffer
type Networks struct {
	cfg   *config.Config
	cache *network.Cache
}

// NewNetworks creates a loader backed by an LRU of the configured size
func NewNetworks(cfg *config.Config) (*Networks, error) {
	cache, err := network.NewCache(cfg.NetworkCacheSize)
	if err != nil {
		return nil, err
	}
	return &Networks{cfg: cfg, cache: cache}, nil
}

// Load returns the raw network collected within bufferMeters of the configured center
func (n *Networks) Load(bufferMeters float64) (network.Network, error) {
	return n.cache.GetOrBuild(FeedVersion(n.cfg), bufferMeters, func() (network.Network, error) {
		data, err := gtfs.LoadDir(n.cfg.GTFSDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return network.Network{}, fmt.Errorf("%w: %s", ErrNoFeed, n.cfg.GTFSDir)
			}
			return network.Network{}, err
		}

		net := network.Build(data, n.cfg.Center(), bufferMeters)
		log.Info().
			Float64("buffer_meters", bufferMeters).
			Int("stops", len(net.Stops)).
			Int("routes", len(net.Routes)).
			Msg("Built network")
		return net, nil
	})
}

// Invalidate drops cached networks after the feed changes
func (n *Networks) Invalidate() {
	n.cache.Purge()
}

// CacheStats returns the cache hit and miss counters
func (n *Networks) CacheStats() (hits, misses uint64) {
	return n.cache.Stats()
}
