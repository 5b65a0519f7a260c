// Package maprender draws the schematic trip route map used on map pages.
package maprender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

// ErrNoPoints is returned when neither the route nor the legend has a coordinate.
var ErrNoPoints = errors.New("no coordinates to draw")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Options configures the canvas and the route simplification.
type Options struct {
	OutputDir       string
	Width           int
	Height          int
	ClusterRadiusKm float64
	MaxPoints       int
	MinSpacingKm    float64
	Padding         float64
	MinSpanDeg      float64
}

// DefaultOptions returns a 1600x1000 canvas writing into dir.
func DefaultOptions(dir string) Options {
	return Options{
		OutputDir:       dir,
		Width:           1600,
		Height:          1000,
		ClusterRadiusKm: 40,
		MaxPoints:       200,
		MinSpacingKm:    0.05,
		Padding:         0.15,
		MinSpanDeg:      0.01,
	}
}

const (
	background  = "#f6f8fa"
	routeColor  = "#2e8bc0"
	startFill   = "#3cb371"
	startStroke = "#1f7a4d"
	endFill     = "#e63946"
	endStroke   = "#b22234"
	stopFill    = "#ffffff"
	stopStroke  = "#24292f"
)

// Renderer writes PNG route maps to a directory. It implements planner.MapRenderer.
type Renderer struct {
	opts Options
	face font.Face
	log  *logrus.Logger
}

// New prepares a renderer and its marker font.
func New(opts Options, log *logrus.Logger) (*Renderer, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("map output directory is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid map size %dx%d", opts.Width, opts.Height)
	}
	if log == nil {
		log = logging.Discard()
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse marker font: %w", err)
	}
	return &Renderer{
		opts: opts,
		face: truetype.NewFace(f, &truetype.Options{Size: 18}),
		log:  log,
	}, nil
}

// FileName is the name of the map file for a book.
func FileName(bookID string) string {
	return "book_" + unsafeChars.ReplaceAllString(bookID, "_") + "_route.png"
}

// RenderMap draws the dominant part of the route with start and end markers
// and numbered legend stops, and writes it as PNG.
func (r *Renderer) RenderMap(ctx context.Context, req planner.MapRequest) (*planner.MapAsset, error) {
	stops := make([]geo.Point, len(req.Stops))
	for i, s := range req.Stops {
		stops[i] = geo.Point{Lat: s.Lat, Lon: s.Lon}
	}

	core := trimOutliers(dominantCluster(req.Route, r.opts.ClusterRadiusKm))
	route := Simplify(core, r.opts.MaxPoints, r.opts.MinSpacingKm)

	framed := route
	if len(framed) == 0 {
		framed = stops
	}
	if len(framed) == 0 {
		return nil, ErrNoPoints
	}
	box := frame(framed, r.opts.Padding, r.opts.MinSpanDeg)

	r.log.WithFields(logrus.Fields{
		"book":       req.BookID,
		"raw_points": len(req.Route),
		"core":       len(core),
		"drawn":      len(route),
	}).Debug("rendering route map")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.SetHexColor(background)
	dc.Clear()

	if len(route) >= 2 {
		dc.SetHexColor(routeColor)
		dc.SetLineWidth(6)
		dc.SetLineJoin(gg.LineJoinRound)
		dc.SetLineCap(gg.LineCapRound)
		for _, p := range route {
			dc.LineTo(project(p, box, r.opts.Width, r.opts.Height))
		}
		dc.Stroke()
	}
	if len(route) > 0 {
		r.marker(dc, route[0], box, 10, startFill, startStroke)
		r.marker(dc, route[len(route)-1], box, 10, endFill, endStroke)
	}

	dc.SetFontFace(r.face)
	for i, s := range req.Stops {
		if !contains(box, stops[i]) {
			continue
		}
		x, y := r.marker(dc, stops[i], box, 16, stopFill, stopStroke)
		dc.SetHexColor(stopStroke)
		dc.DrawStringAnchored(strconv.Itoa(s.Number), x, y, 0.5, 0.35)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode map: %w", err)
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create map directory: %w", err)
	}
	path := filepath.Join(r.opts.OutputDir, FileName(req.BookID))
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}

	r.log.WithField("book", req.BookID).WithField("path", path).Info("route map rendered")
	return &planner.MapAsset{Path: path, Width: r.opts.Width, Height: r.opts.Height}, nil
}

func (r *Renderer) marker(dc *gg.Context, p geo.Point, box geo.BBox, radius float64, fill, stroke string) (float64, float64) {
	x, y := project(p, box, r.opts.Width, r.opts.Height)
	dc.DrawCircle(x, y, radius)
	dc.SetHexColor(fill)
	dc.FillPreserve()
	dc.SetHexColor(stroke)
	dc.SetLineWidth(2)
	dc.Stroke()
	return x, y
}

// writeAtomic replaces path so readers never see a partial PNG.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".map-*.png")
	if err != nil {
		return fmt.Errorf("create temp map: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write map: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close map: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move map into place: %w", err)
	}
	return nil
}
