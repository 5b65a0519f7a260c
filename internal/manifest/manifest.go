package manifest

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Precondition violations returned by Build.
var (
	ErrMissingID         = errors.New("asset id is required")
	ErrDuplicateID       = errors.New("duplicate asset id")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrUnknownStatus     = errors.New("unknown asset status")
	ErrMixedOffsets      = errors.New("timestamps use different UTC offsets")
)

// Manifest holds the normalized asset sequences of one book.
type Manifest struct {
	// Approved assets in canonical order, the input of segmentation and planning.
	Approved []AssetRecord
	// Curatable assets (approved and imported) in canonical order, the input of curation.
	Curatable []AssetRecord
}

// Build validates the records and orders them canonically: dated assets by
// (takenAt, id), followed by undated assets by (createdAt, id). Rejected
// assets are dropped. Records are copied, the input slice is not modified.
func Build(records []AssetRecord) (*Manifest, error) {
	seen := make(map[string]struct{}, len(records))
	m := &Manifest{}
	// days are cut on the wall clock, so every timestamp must share one offset
	var offset *int
	var offsetOwner string

	for i, rec := range records {
		rec.ID = strings.TrimSpace(rec.ID)
		if rec.ID == "" {
			return nil, fmt.Errorf("record %d: %w", i, ErrMissingID)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		seen[rec.ID] = struct{}{}

		if (rec.Lat == nil) != (rec.Lon == nil) {
			return nil, fmt.Errorf("%w: asset %s has only one of lat/lon", ErrInvalidCoordinate, rec.ID)
		}
		if rec.Lat != nil {
			if *rec.Lat < -90 || *rec.Lat > 90 || *rec.Lon < -180 || *rec.Lon > 180 {
				return nil, fmt.Errorf("%w: asset %s at %f,%f", ErrInvalidCoordinate, rec.ID, *rec.Lat, *rec.Lon)
			}
		}

		switch rec.Status {
		case "", StatusApproved, StatusImported:
		case StatusRejected:
			continue
		default:
			return nil, fmt.Errorf("%w: %q on asset %s", ErrUnknownStatus, rec.Status, rec.ID)
		}

		if rec.Dated() {
			_, off := rec.TakenAt.Zone()
			if offset == nil {
				offset, offsetOwner = &off, rec.ID
			} else if off != *offset {
				return nil, fmt.Errorf("%w: asset %s at %s, asset %s at %s", ErrMixedOffsets,
					offsetOwner, formatOffset(*offset), rec.ID, formatOffset(off))
			}
		}

		m.Curatable = append(m.Curatable, rec)
		if rec.IsApproved() {
			m.Approved = append(m.Approved, rec)
		}
	}

	slices.SortFunc(m.Curatable, Compare)
	slices.SortFunc(m.Approved, Compare)
	return m, nil
}

func formatOffset(seconds int) string {
	return time.Unix(0, 0).In(time.FixedZone("", seconds)).Format("-07:00")
}

// Compare orders two assets canonically.
func Compare(a, b AssetRecord) int {
	ad, bd := a.Dated(), b.Dated()
	switch {
	case ad && bd:
		if c := a.TakenAt.Compare(*b.TakenAt); c != 0 {
			return c
		}
	case ad:
		return -1
	case bd:
		return 1
	default:
		if c := compareOptional(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
	}
	return strings.Compare(a.ID, b.ID)
}

func compareOptional(a, b *time.Time) int {
	switch {
	case a != nil && b != nil:
		return a.Compare(*b)
	case a != nil:
		return -1
	case b != nil:
		return 1
	}
	return 0
}

// IsSorted reports whether the assets are already in canonical order.
func IsSorted(assets []AssetRecord) bool {
	return slices.IsSortedFunc(assets, Compare)
}

// IDs returns the asset ids in order.
func IDs(assets []AssetRecord) []string {
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids
}

// Index maps asset ids to records.
func Index(assets []AssetRecord) map[string]AssetRecord {
	idx := make(map[string]AssetRecord, len(assets))
	for _, a := range assets {
		idx[a.ID] = a
	}
	return idx
}
