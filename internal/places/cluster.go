package places

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/geocode"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/timeline"
	"github.com/sirupsen/logrus"
)

// Options configures stop clustering.
type Options struct {
	// RadiusKm links photos into the same stop.
	RadiusKm float64
	// GeocodeTimeout bounds each reverse-geocoding call.
	GeocodeTimeout time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		RadiusKm:       constants.DefaultStopRadiusKm,
		GeocodeTimeout: constants.DefaultGeocodeTimeout,
	}
}

// Clusterer builds stops from geotagged photos.
type Clusterer struct {
	geocoder geocode.ReverseGeocoder
	opts     Options
	log      *logrus.Logger
}

// NewClusterer creates a clusterer. geocoder may be nil, in which case stops
// are labelled by coordinates.
func NewClusterer(geocoder geocode.ReverseGeocoder, opts Options, log *logrus.Logger) *Clusterer {
	return &Clusterer{geocoder: geocoder, opts: opts, log: log}
}

type member struct {
	asset manifest.AssetRecord
	point geo.Point
	pos   timeline.Position
	order int
}

// Cluster groups the geotagged assets into labelled stops ordered by first visit.
// assets must be in canonical order and days must be their segmentation.
func (c *Clusterer) Cluster(ctx context.Context, assets []manifest.AssetRecord, days []timeline.Day) []Stop {
	stops := BuildStops(assets, days, c.opts.RadiusKm)
	c.label(ctx, stops)
	return stops
}

// BuildStops clusters without labelling.
func BuildStops(assets []manifest.AssetRecord, days []timeline.Day, radiusKm float64) []Stop {
	positions := timeline.Locate(days)

	var members []member
	for i, a := range assets {
		p, ok := a.Point()
		if !ok {
			continue
		}
		members = append(members, member{asset: a, point: p, pos: positions[a.ID], order: i})
	}

	points := make([]geo.Point, len(members))
	for i, m := range members {
		points[i] = m.point
	}

	var stops []Stop
	for _, comp := range linkComponents(points, radiusKm) {
		group := make([]member, len(comp))
		for i, idx := range comp {
			group[i] = members[idx]
		}
		stops = append(stops, summarizeStop(group))
	}
	SortChronologically(stops)
	return stops
}

func summarizeStop(group []member) Stop {
	slices.SortFunc(group, func(a, b member) int { return manifest.Compare(a.asset, b.asset) })

	ids := make([]string, len(group))
	for i, m := range group {
		ids[i] = m.asset.ID
	}
	stop := Stop{
		StableID:    StableID(ids),
		TotalPhotos: len(group),
		AssetIDs:    ids,
		Thumbnails:  slices.Clone(ids[:min(len(ids), constants.MaxThumbnailsPerStop)]),
	}

	// centroid over id-sorted points keeps the float sum independent of input order
	byID := slices.Clone(group)
	slices.SortFunc(byID, func(a, b member) int { return strings.Compare(a.asset.ID, b.asset.ID) })
	pts := make([]geo.Point, len(byID))
	for i, m := range byID {
		pts[i] = m.point
	}
	center := geo.Centroid(pts)
	stop.CenterLat, stop.CenterLon = center.Lat, center.Lon

	daySet := map[int]bool{}
	var visit []member
	closeVisit := func() {
		if len(visit) == 0 {
			return
		}
		stop.VisitCount++
		var first, last *time.Time
		vpts := make([]geo.Point, len(visit))
		for i, m := range visit {
			vpts[i] = m.point
			if m.asset.Dated() {
				if first == nil {
					first = m.asset.TakenAt
				}
				last = m.asset.TakenAt
			}
		}
		if first != nil {
			stop.TotalDurationHours += last.Sub(*first).Hours()
		}
		stop.TotalDistanceKm += geo.PathKm(vpts)
		visit = nil
	}
	for _, m := range group {
		daySet[m.pos.Day] = true
		if m.asset.Dated() && stop.FirstTakenAt == nil {
			t := *m.asset.TakenAt
			stop.FirstTakenAt = &t
		}
		if len(visit) > 0 && visit[len(visit)-1].pos != m.pos {
			closeVisit()
		}
		visit = append(visit, m)
	}
	closeVisit()

	for d := range daySet {
		stop.DayIndices = append(stop.DayIndices, d)
	}
	slices.Sort(stop.DayIndices)
	return stop
}

// label reverse-geocodes each stop centroid. Failures leave the name fields
// nil so the stop falls back to its coordinate label.
func (c *Clusterer) label(ctx context.Context, stops []Stop) {
	if c.geocoder == nil {
		return
	}
	for i := range stops {
		if ctx.Err() != nil {
			return
		}
		place, err := c.lookup(ctx, stops[i].Center())
		if err != nil {
			c.log.WithError(err).WithField("stop", stops[i].StableID).Warn("reverse geocoding failed, using coordinates")
			continue
		}
		if place == nil || place.Empty() {
			continue
		}
		applyPlace(&stops[i], *place)
	}
}

func (c *Clusterer) lookup(ctx context.Context, p geo.Point) (*geocode.Place, error) {
	timeout := c.opts.GeocodeTimeout
	if timeout <= 0 {
		timeout = constants.DefaultGeocodeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.geocoder.ReverseGeocode(ctx, p)
}

func applyPlace(s *Stop, place geocode.Place) {
	if place.DisplayName != "" {
		raw := place.DisplayName
		s.RawName = &raw
		best := geocode.TruncateLabel(raw, 1)
		s.BestPlaceName = &best
	}
	if short := place.ShortLabel(); short != "" {
		s.DisplayName = &short
	}
	s.CityLabel = place.CityLabel()
}
