package manifest

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// LoadDirectory builds approved asset records from the photos under dir,
// reading capture time and GPS position from EXIF. Photos without EXIF are
// kept as undated, ungeotagged assets. The asset id is the slash-separated
// path relative to dir.
func LoadDirectory(dir string) ([]AssetRecord, error) {
	var assets []AssetRecord
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !photoExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		asset, err := readAsset(path)
		if err != nil {
			return err
		}
		asset.ID = filepath.ToSlash(rel)
		assets = append(assets, asset)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return assets, nil
}

func readAsset(path string) (AssetRecord, error) {
	asset := AssetRecord{Path: path, Status: StatusApproved}

	f, err := os.Open(path)
	if err != nil {
		return asset, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	if cfg, _, err := image.DecodeConfig(f); err == nil {
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}

	if _, err := f.Seek(0, 0); err != nil {
		return asset, fmt.Errorf("could not rewind %s: %w", path, err)
	}
	x, err := exif.Decode(f)
	if err != nil {
		// no EXIF block
		return asset, nil
	}
	if t, err := x.DateTime(); err == nil {
		// EXIF carries the camera's wall clock; pin it to UTC so a DST change
		// in the scanning host's zone cannot split the trip into two offsets.
		wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		asset.TakenAt = &wall
	}
	if lat, lon, err := x.LatLong(); err == nil {
		asset.Lat, asset.Lon = &lat, &lon
	}
	return asset, nil
}
