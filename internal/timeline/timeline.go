// Package timeline splits an ordered asset sequence into days and sub-day segments.
//
// Policy for undated assets: they trail the last dated day. When no asset is
// dated they form a single undated day. Undated assets never open a segment on
// the time rule, only on the distance rule.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"golang.org/x/sync/errgroup"
)

// ErrUnsorted is returned when the input is not in canonical manifest order.
var ErrUnsorted = errors.New("assets are not in canonical order")

const dateLayout = "2006-01-02"

// Day is one calendar date of the trip.
type Day struct {
	DayIndex int       `json:"dayIndex"`
	Date     *string   `json:"date"`
	AssetIDs []string  `json:"assetIds"`
	Segments []Segment `json:"segments"`
}

// Segment is a run of photos within a day not broken by a long pause or a long move.
type Segment struct {
	SegmentIndex     int        `json:"segmentIndex"`
	AssetIDs         []string   `json:"assetIds"`
	StartTakenAt     *time.Time `json:"startTakenAt"`
	EndTakenAt       *time.Time `json:"endTakenAt"`
	DurationMinutes  *float64   `json:"durationMinutes"`
	ApproxDistanceKm *float64   `json:"approxDistanceKm"`
}

// Options configures segmentation thresholds.
type Options struct {
	// GapThreshold opens a new segment when exceeded between consecutive dated photos.
	GapThreshold time.Duration
	// DistanceKm opens a new segment when exceeded between consecutive geotagged photos.
	DistanceKm float64
	// Workers bounds per-day parallelism.
	Workers int
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{
		GapThreshold: constants.DefaultSegmentGapMinutes * time.Minute,
		DistanceKm:   constants.DefaultSegmentDistanceKm,
		Workers:      constants.WorkerPoolSize,
	}
}

// Build groups canonically ordered assets into days and segments. It does not
// re-sort: unordered input is rejected with ErrUnsorted.
func Build(ctx context.Context, assets []manifest.AssetRecord, opts Options) ([]Day, error) {
	if !manifest.IsSorted(assets) {
		return nil, ErrUnsorted
	}
	if len(assets) == 0 {
		return []Day{}, nil
	}

	groups := partitionDays(assets)
	days := make([]Day, len(groups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, grp := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("segment day %d: %w", i, err)
			}
			days[i] = Day{
				DayIndex: i,
				Date:     grp.date,
				AssetIDs: manifest.IDs(grp.assets),
				Segments: splitSegments(grp.assets, opts),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return days, nil
}

type dayGroup struct {
	date   *string
	assets []manifest.AssetRecord
}

func partitionDays(assets []manifest.AssetRecord) []dayGroup {
	var groups []dayGroup
	for _, a := range assets {
		if !a.Dated() {
			if len(groups) == 0 {
				groups = append(groups, dayGroup{})
			}
			last := &groups[len(groups)-1]
			last.assets = append(last.assets, a)
			continue
		}
		date := a.TakenAt.Format(dateLayout)
		if len(groups) == 0 || groups[len(groups)-1].date == nil || *groups[len(groups)-1].date != date {
			groups = append(groups, dayGroup{date: &date})
		}
		last := &groups[len(groups)-1]
		last.assets = append(last.assets, a)
	}
	return groups
}

func splitSegments(assets []manifest.AssetRecord, opts Options) []Segment {
	var (
		segments []Segment
		current  []manifest.AssetRecord
		lastTime *time.Time
		lastGeo  *geo.Point
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		segments = append(segments, summarize(len(segments), current))
		current = nil
	}

	for _, a := range assets {
		split := false
		if a.Dated() && lastTime != nil && opts.GapThreshold > 0 && a.TakenAt.Sub(*lastTime) > opts.GapThreshold {
			split = true
		}
		p, hasGeo := a.Point()
		if hasGeo && lastGeo != nil && opts.DistanceKm > 0 && geo.DistanceKm(*lastGeo, p) > opts.DistanceKm {
			split = true
		}
		if split {
			flush()
		}

		current = append(current, a)
		if a.Dated() {
			t := *a.TakenAt
			lastTime = &t
		}
		if hasGeo {
			lastGeo = &p
		}
	}
	flush()
	return segments
}

func summarize(index int, assets []manifest.AssetRecord) Segment {
	seg := Segment{SegmentIndex: index, AssetIDs: manifest.IDs(assets)}

	var dated int
	var points []geo.Point
	for _, a := range assets {
		if a.Dated() {
			t := *a.TakenAt
			if seg.StartTakenAt == nil {
				seg.StartTakenAt = &t
			}
			seg.EndTakenAt = &t
			dated++
		}
		if p, ok := a.Point(); ok {
			points = append(points, p)
		}
	}

	if dated >= 2 {
		d := seg.EndTakenAt.Sub(*seg.StartTakenAt).Minutes()
		seg.DurationMinutes = &d
	}
	if len(points) >= 2 {
		km := geo.PathKm(points)
		seg.ApproxDistanceKm = &km
	}
	return seg
}

// Locate maps each asset id to its (dayIndex, segmentIndex).
func Locate(days []Day) map[string]Position {
	pos := make(map[string]Position)
	for _, d := range days {
		for _, s := range d.Segments {
			for _, id := range s.AssetIDs {
				pos[id] = Position{Day: d.DayIndex, Segment: s.SegmentIndex}
			}
		}
	}
	return pos
}

// Position identifies the segment an asset belongs to.
type Position struct {
	Day     int `json:"day"`
	Segment int `json:"segment"`
}
