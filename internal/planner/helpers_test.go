package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

var tripStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type city struct {
	name     string
	lat, lon float64
}

var (
	paris   = city{"Paris", 48.8566, 2.3522}
	lyon    = city{"Lyon", 45.7640, 4.8357}
	nice    = city{"Nice", 43.7102, 7.2620}
	nowhere = city{}
)

// day describes the photos of one trip day taken in one city.
type day struct {
	city   city
	photos int
}

type fixture struct {
	assets []manifest.AssetRecord
	days   []timeline.Day
	stops  []places.Stop
}

// buildTrip creates photos for consecutive days; cities with an empty name
// produce photos without coordinates.
func buildTrip(t *testing.T, plan []day) fixture {
	t.Helper()
	var assets []manifest.AssetRecord
	for d, entry := range plan {
		for i := range entry.photos {
			ts := tripStart.Add(time.Duration(d)*24*time.Hour + time.Duration(i)*10*time.Minute)
			a := manifest.AssetRecord{ID: fmt.Sprintf("d%02d-p%02d", d, i), TakenAt: &ts}
			if entry.city.name != "" {
				lat := entry.city.lat + float64(i)*0.0001
				lon := entry.city.lon
				a.Lat, a.Lon = &lat, &lon
			}
			assets = append(assets, a)
		}
	}
	return buildFrom(t, assets, plan)
}

func buildFrom(t *testing.T, assets []manifest.AssetRecord, plan []day) fixture {
	t.Helper()
	m, err := manifest.Build(assets)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	days, err := timeline.Build(context.Background(), m.Approved, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	stops := places.BuildStops(m.Approved, days, 0.5)
	for i := range stops {
		for _, c := range []city{paris, lyon, nice} {
			if abs(stops[i].CenterLat-c.lat) < 0.1 {
				name := c.name
				stops[i].CityLabel = name
				stops[i].DisplayName = &name
			}
		}
	}
	return fixture{assets: m.Approved, days: days, stops: stops}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (f fixture) input(bookID string) Input {
	return Input{BookID: bookID, Assets: f.assets, Days: f.days, Stops: f.stops}
}

func newPlanner() *Planner {
	return New(DefaultOptions(), logging.Discard())
}

// stopAt makes a synthetic stop for legend tests.
func stopAt(id string, hour, photos int) places.Stop {
	ts := tripStart.Add(time.Duration(hour) * time.Hour)
	return places.Stop{StableID: id, TotalPhotos: photos, FirstTakenAt: &ts}
}
