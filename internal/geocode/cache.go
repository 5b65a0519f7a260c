package geocode

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/sirupsen/logrus"
)

// cacheStep quantizes coordinates to three decimals (about 100 m).
const cacheStep = 0.001

// Cached wraps a ReverseGeocoder with an in-memory LRU and an optional
// persistent cache. Persistent cache errors are logged and ignored.
type Cached struct {
	next  ReverseGeocoder
	store database.GeocodeCache
	ttl   time.Duration
	log   *logrus.Logger
	mem   *lru.Cache[string, Place]
}

// NewCached creates a caching geocoder. store may be nil.
func NewCached(next ReverseGeocoder, store database.GeocodeCache, capacity int, log *logrus.Logger) *Cached {
	mem, err := lru.New[string, Place](max(capacity, 1))
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Cached{
		next:  next,
		store: store,
		ttl:   constants.GeocodeCacheTTL,
		log:   log,
		mem:   mem,
	}
}

// CacheKey returns the quantized key for a coordinate.
func CacheKey(p geo.Point) string {
	q := geo.Quantize(p, cacheStep)
	return fmt.Sprintf("%.3f,%.3f", q.Lat, q.Lon)
}

// ReverseGeocode answers from the caches and falls through to the wrapped geocoder.
func (c *Cached) ReverseGeocode(ctx context.Context, p geo.Point) (*Place, error) {
	key := CacheKey(p)
	if place, ok := c.mem.Get(key); ok {
		return &place, nil
	}

	if c.store != nil {
		stored, err := c.store.GetPlace(ctx, key, c.ttl)
		if err != nil {
			c.log.WithError(err).WithField("key", key).Warn("geocode cache read failed")
		} else if stored != nil {
			place := Place{City: stored.City, State: stored.State, Country: stored.Country, DisplayName: stored.DisplayName}
			c.mem.Add(key, place)
			return &place, nil
		}
	}

	place, err := c.next.ReverseGeocode(ctx, geo.Quantize(p, cacheStep))
	if err != nil {
		return nil, err
	}
	c.mem.Add(key, *place)

	if c.store != nil {
		err := c.store.PutPlace(ctx, &database.StoredPlace{
			Key:         key,
			City:        place.City,
			State:       place.State,
			Country:     place.Country,
			DisplayName: place.DisplayName,
			FetchedAt:   time.Now(),
		})
		if err != nil {
			c.log.WithError(err).WithField("key", key).Warn("geocode cache write failed")
		}
	}
	return place, nil
}
