package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Coarse map styles for books with low geo coverage.
const (
	CoarseStyleLargerClusters = "larger_clusters"
	CoarseStyleDisableDayMaps = "disable_day_maps"
)

type Config struct {
	Database  DatabaseConfig
	Store     StoreConfig
	Geocoder  GeocoderConfig
	MapRender MapRenderConfig
	Embedding EmbeddingConfig
	Log       LogConfig
	Pipeline  PipelineConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StoreConfig struct {
	SQLitePath string // used when DATABASE_URL is empty (default tripbook.db)
}

type GeocoderConfig struct {
	URL       string // Nominatim-compatible endpoint; empty disables reverse geocoding
	UserAgent string
	Throttle  time.Duration
}

type MapRenderConfig struct {
	OutputDir string // empty disables map rendering
	Width     int
	Height    int
}

type EmbeddingConfig struct {
	URL   string // optional embedding server for the duplicate index
	Model string
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

// PipelineConfig holds the tunable thresholds of the planning pipeline.
type PipelineConfig struct {
	SegmentGapMinutes int     `yaml:"segment_gap_minutes" koanf:"segment_gap_minutes"`
	SegmentDistanceKm float64 `yaml:"segment_distance_km" koanf:"segment_distance_km"`

	StopRadiusKm   float64 `yaml:"stop_radius_km" koanf:"stop_radius_km"`
	CoarseRadiusKm float64 `yaml:"coarse_radius_km" koanf:"coarse_radius_km"`
	CoarseMapStyle string  `yaml:"coarse_map_style" koanf:"coarse_map_style"`

	BlurVeryBlurry   float64 `yaml:"blur_very_blurry" koanf:"blur_very_blurry"`
	BlurBlurry       float64 `yaml:"blur_blurry" koanf:"blur_blurry"`
	BrightnessDark   float64 `yaml:"brightness_dark" koanf:"brightness_dark"`
	BrightnessBright float64 `yaml:"brightness_bright" koanf:"brightness_bright"`
	ContrastLow      float64 `yaml:"contrast_low" koanf:"contrast_low"`
	EdgeDensityLow   float64 `yaml:"edge_density_low" koanf:"edge_density_low"`

	WeightBlur       float64 `yaml:"weight_blur" koanf:"weight_blur"`
	WeightBrightness float64 `yaml:"weight_brightness" koanf:"weight_brightness"`
	WeightContrast   float64 `yaml:"weight_contrast" koanf:"weight_contrast"`
	WeightEdges      float64 `yaml:"weight_edges" koanf:"weight_edges"`

	DuplicateMaxHamming        int     `yaml:"duplicate_max_hamming" koanf:"duplicate_max_hamming"`
	EmbeddingDuplicateDistance float64 `yaml:"embedding_duplicate_distance" koanf:"embedding_duplicate_distance"`

	MaxLikelyRejects   int `yaml:"max_likely_rejects" koanf:"max_likely_rejects"`
	MaxDuplicateGroups int `yaml:"max_duplicate_groups" koanf:"max_duplicate_groups"`

	HighlightCap     int     `yaml:"highlight_cap" koanf:"highlight_cap"`
	GalleryCap       int     `yaml:"gallery_cap" koanf:"gallery_cap"`
	LegendCap        int     `yaml:"legend_cap" koanf:"legend_cap"`
	PicksPerSegment  int     `yaml:"picks_per_segment" koanf:"picks_per_segment"`
	DiversityPenalty float64 `yaml:"diversity_penalty" koanf:"diversity_penalty"`

	ItineraryMaxKmPerDay float64 `yaml:"itinerary_max_km_per_day" koanf:"itinerary_max_km_per_day"`

	TrimSize string `yaml:"trim_size" koanf:"trim_size"`
	Workers  int    `yaml:"workers" koanf:"workers"`

	GeocodeTimeout   time.Duration `yaml:"geocode_timeout" koanf:"geocode_timeout"`
	MapRenderTimeout time.Duration `yaml:"map_render_timeout" koanf:"map_render_timeout"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration string.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// DefaultPipeline returns the thresholds embedded in the binary.
func DefaultPipeline() PipelineConfig {
	var p PipelineConfig
	if err := yamlv3.Unmarshal(defaultsYAML, &p); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return p
}

// LoadPipeline layers the embedded defaults, an optional YAML file named by
// TRIPBOOK_CONFIG and TRIPBOOK_* environment variables (low to high precedence).
func LoadPipeline() (PipelineConfig, error) {
	base := DefaultPipeline()

	k := koanf.New(".")
	if path := os.Getenv("TRIPBOOK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return PipelineConfig{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// TRIPBOOK_STOP_RADIUS_KM -> stop_radius_km
	envProvider := env.Provider("TRIPBOOK_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "TRIPBOOK_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return PipelineConfig{}, fmt.Errorf("load config env: %w", err)
	}

	cfg := base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return PipelineConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// Validate checks that thresholds are usable.
func (p PipelineConfig) Validate() error {
	switch {
	case p.SegmentGapMinutes <= 0:
		return fmt.Errorf("%w: segment_gap_minutes must be positive", ErrInvalidConfig)
	case p.SegmentDistanceKm <= 0:
		return fmt.Errorf("%w: segment_distance_km must be positive", ErrInvalidConfig)
	case p.StopRadiusKm <= 0:
		return fmt.Errorf("%w: stop_radius_km must be positive", ErrInvalidConfig)
	case p.CoarseRadiusKm < p.StopRadiusKm:
		return fmt.Errorf("%w: coarse_radius_km must not be smaller than stop_radius_km", ErrInvalidConfig)
	case p.CoarseMapStyle != CoarseStyleLargerClusters && p.CoarseMapStyle != CoarseStyleDisableDayMaps:
		return fmt.Errorf("%w: unknown coarse_map_style %q", ErrInvalidConfig, p.CoarseMapStyle)
	case p.WeightBlur < 0 || p.WeightBrightness < 0 || p.WeightContrast < 0 || p.WeightEdges < 0:
		return fmt.Errorf("%w: quality weights must not be negative", ErrInvalidConfig)
	case p.WeightBlur+p.WeightBrightness+p.WeightContrast+p.WeightEdges == 0:
		return fmt.Errorf("%w: at least one quality weight must be set", ErrInvalidConfig)
	case p.DuplicateMaxHamming < 0:
		return fmt.Errorf("%w: duplicate_max_hamming must not be negative", ErrInvalidConfig)
	case p.HighlightCap <= 0 || p.LegendCap < 2:
		return fmt.Errorf("%w: highlight_cap must be positive and legend_cap at least 2", ErrInvalidConfig)
	case p.ItineraryMaxKmPerDay <= 0:
		return fmt.Errorf("%w: itinerary_max_km_per_day must be positive", ErrInvalidConfig)
	case p.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// Load reads infrastructure settings from the environment and the layered pipeline thresholds.
func Load() (*Config, error) {
	pipeline, err := LoadPipeline()
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Store: StoreConfig{
			SQLitePath: envString("TRIPBOOK_SQLITE_PATH", "tripbook.db"),
		},
		Geocoder: GeocoderConfig{
			URL:       os.Getenv("GEOCODER_URL"),
			UserAgent: envString("GEOCODER_USER_AGENT", "trip-book/1.0"),
			Throttle:  envDuration("GEOCODER_THROTTLE", 1100*time.Millisecond),
		},
		MapRender: MapRenderConfig{
			OutputDir: os.Getenv("MAP_OUTPUT_DIR"),
			Width:     envInt("MAP_WIDTH", 1600),
			Height:    envInt("MAP_HEIGHT", 1000),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: envString("EMBEDDING_MODEL", "clip"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Pipeline: pipeline,
	}, nil
}
