package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()

	if p.SegmentGapMinutes != 90 {
		t.Errorf("expected segment gap 90, got %d", p.SegmentGapMinutes)
	}
	if p.StopRadiusKm != 0.5 {
		t.Errorf("expected stop radius 0.5, got %f", p.StopRadiusKm)
	}
	if p.HighlightCap != 6 || p.LegendCap != 8 {
		t.Errorf("expected caps 6/8, got %d/%d", p.HighlightCap, p.LegendCap)
	}
	if p.GeocodeTimeout != 5*time.Second {
		t.Errorf("expected geocode timeout 5s, got %v", p.GeocodeTimeout)
	}
	if p.CoarseMapStyle != CoarseStyleLargerClusters {
		t.Errorf("expected coarse style %q, got %q", CoarseStyleLargerClusters, p.CoarseMapStyle)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("embedded defaults should validate: %v", err)
	}
}

func TestLoadPipeline_EnvOverride(t *testing.T) {
	t.Setenv("TRIPBOOK_STOP_RADIUS_KM", "0.75")
	t.Setenv("TRIPBOOK_LEGEND_CAP", "5")
	t.Setenv("TRIPBOOK_MAP_RENDER_TIMEOUT", "3s")

	p, err := LoadPipeline()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.StopRadiusKm != 0.75 {
		t.Errorf("expected stop radius 0.75, got %f", p.StopRadiusKm)
	}
	if p.LegendCap != 5 {
		t.Errorf("expected legend cap 5, got %d", p.LegendCap)
	}
	if p.MapRenderTimeout != 3*time.Second {
		t.Errorf("expected map timeout 3s, got %v", p.MapRenderTimeout)
	}
	// untouched keys keep embedded defaults
	if p.SegmentGapMinutes != 90 {
		t.Errorf("expected segment gap 90, got %d", p.SegmentGapMinutes)
	}
}

func TestLoadPipeline_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripbook.yaml")
	content := "segment_gap_minutes: 45\nhighlight_cap: 4\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRIPBOOK_CONFIG", path)
	t.Setenv("TRIPBOOK_HIGHLIGHT_CAP", "3")

	p, err := LoadPipeline()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SegmentGapMinutes != 45 {
		t.Errorf("expected file value 45, got %d", p.SegmentGapMinutes)
	}
	if p.HighlightCap != 3 {
		t.Errorf("expected env to win with 3, got %d", p.HighlightCap)
	}
}

func TestLoadPipeline_MissingFile(t *testing.T) {
	t.Setenv("TRIPBOOK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := LoadPipeline(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *PipelineConfig)
	}{
		{"zero gap", func(p *PipelineConfig) { p.SegmentGapMinutes = 0 }},
		{"negative distance", func(p *PipelineConfig) { p.SegmentDistanceKm = -1 }},
		{"coarse smaller than stop", func(p *PipelineConfig) { p.CoarseRadiusKm = 0.1 }},
		{"unknown coarse style", func(p *PipelineConfig) { p.CoarseMapStyle = "tiny" }},
		{"all weights zero", func(p *PipelineConfig) {
			p.WeightBlur, p.WeightBrightness, p.WeightContrast, p.WeightEdges = 0, 0, 0, 0
		}},
		{"legend cap one", func(p *PipelineConfig) { p.LegendCap = 1 }},
		{"no itinerary cap", func(p *PipelineConfig) { p.ItineraryMaxKmPerDay = 0 }},
		{"no workers", func(p *PipelineConfig) { p.Workers = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultPipeline()
			tc.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad_Infrastructure(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trips")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("GEOCODER_THROTTLE", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/trips" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected fallback of 25 open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Geocoder.Throttle != 2*time.Second {
		t.Errorf("expected throttle 2s, got %v", cfg.Geocoder.Throttle)
	}
	if cfg.Store.SQLitePath != "tripbook.db" {
		t.Errorf("expected default sqlite path, got %q", cfg.Store.SQLitePath)
	}
}
