package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/database/postgres"
	"github.com/kozaktomas/trip-book/internal/database/sqlite"
	"github.com/kozaktomas/trip-book/internal/fingerprint"
	"github.com/kozaktomas/trip-book/internal/geocode"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/maprender"
	"github.com/kozaktomas/trip-book/internal/metrics"
	"github.com/kozaktomas/trip-book/internal/pipeline"
	"github.com/kozaktomas/trip-book/internal/quality"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runtimeEnv holds what every command needs after startup.
type runtimeEnv struct {
	cfg   *config.Config
	log   *logrus.Logger
	store database.Store
	close func()
}

// setup loads configuration, builds the logger and opens the store:
// PostgreSQL when DATABASE_URL is set, the SQLite file otherwise.
func setup(cmd *cobra.Command) (*runtimeEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if flag := mustGetString(cmd, "log-level"); flag != "" {
		level = flag
	}
	log := logging.New(level, cfg.Log.Format)

	env := &runtimeEnv{cfg: cfg, log: log, close: func() {}}
	if cfg.Database.URL != "" {
		if err := postgres.Initialize(&cfg.Database, log); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		env.close = func() {
			if pool := postgres.GetGlobalPool(); pool != nil {
				pool.Close()
			}
		}
	} else {
		db, err := sqlite.Initialize(&cfg.Store, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		env.close = func() { db.Close() }
	}
	log.WithField("backend", database.Backend()).Debug("storage ready")

	store, err := database.GetStore(cmd.Context())
	if err != nil {
		env.close()
		return nil, err
	}
	env.store = store
	return env, nil
}

// generator wires the optional collaborators the configuration enables.
// photoRoot resolves relative asset paths for quality analysis; empty disables it.
func (e *runtimeEnv) generator(photoRoot string, rec *metrics.Recorder) (*pipeline.Generator, error) {
	g := pipeline.NewGenerator(e.store, e.cfg.Pipeline, e.log).WithMetrics(rec)

	if e.cfg.Geocoder.URL != "" {
		g.WithGeocoder(geocode.NewNominatim(e.cfg.Geocoder.URL, e.cfg.Geocoder.UserAgent, e.cfg.Geocoder.Throttle))
	}
	if e.cfg.MapRender.OutputDir != "" {
		opts := maprender.DefaultOptions(e.cfg.MapRender.OutputDir)
		opts.Width, opts.Height = e.cfg.MapRender.Width, e.cfg.MapRender.Height
		r, err := maprender.New(opts, e.log)
		if err != nil {
			return nil, fmt.Errorf("map renderer: %w", err)
		}
		g.WithMapRenderer(r)
	}
	if photoRoot != "" {
		g.WithImageSource(quality.DirSource{Root: photoRoot})
		if e.cfg.Embedding.URL != "" {
			g.WithEmbedder(fingerprint.NewEmbeddingClient(e.cfg.Embedding.URL, e.cfg.Embedding.Model))
		}
	}
	return g, nil
}

// addInputFlags registers the flags that select the photos of a book.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("manifest", "", "Manifest JSON file (- for stdin)")
	cmd.Flags().String("dir", "", "Directory of photos, read with EXIF")
	cmd.Flags().String("photos-root", "", "Root for relative photo paths in the manifest (default: manifest directory)")
	cmd.Flags().Bool("no-analysis", false, "Skip quality analysis and duplicate detection")
}

// loadInput reads the assets selected by --manifest or --dir and returns
// them with the title from the manifest and the root photo paths resolve against.
func loadInput(cmd *cobra.Command) ([]manifest.AssetRecord, string, string, error) {
	manifestPath := mustGetString(cmd, "manifest")
	dir := mustGetString(cmd, "dir")
	root := mustGetString(cmd, "photos-root")

	var assets []manifest.AssetRecord
	var title string
	switch {
	case manifestPath != "" && dir != "":
		return nil, "", "", errors.New("use either --manifest or --dir, not both")
	case dir != "":
		loaded, err := manifest.LoadDirectory(dir)
		if err != nil {
			return nil, "", "", err
		}
		assets = loaded
		if root == "" {
			root = dir
		}
	case manifestPath != "":
		f, err := openManifest(manifestPath)
		if err != nil {
			return nil, "", "", err
		}
		assets, title = f.Assets, f.Title
		if root == "" && manifestPath != "-" {
			root = filepath.Dir(manifestPath)
		}
	default:
		return nil, "", "", errors.New("--manifest or --dir is required")
	}

	if mustGetBool(cmd, "no-analysis") {
		root = ""
	}
	return assets, title, root, nil
}

func openManifest(path string) (*manifest.File, error) {
	if path == "-" {
		return manifest.Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return manifest.Decode(f)
}

// splitIDs parses a comma-separated id list, dropping blanks.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for id := range strings.SplitSeq(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
