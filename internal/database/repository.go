package database

import (
	"context"
	"time"
)

// OverrideStore persists user edits of stops
type OverrideStore interface {
	// GetOverrides returns all overrides of a book keyed by stable id
	GetOverrides(ctx context.Context, bookID string) (map[string]StopOverride, error)
	// PutOverride merges a patch into the override of one stop (last writer wins per field)
	PutOverride(ctx context.Context, bookID, stableID string, patch OverridePatch) error
}

// PicksStore persists the highlight/gallery selection and its provenance
type PicksStore interface {
	// GetPicks returns the stored picks of a book, nil if none
	GetPicks(ctx context.Context, bookID string) (*StoredPicks, error)
	// PutPicks replaces the stored picks of a book
	PutPicks(ctx context.Context, picks *StoredPicks) error
	// ResetPicks deletes stored picks so the next generation selects automatically
	ResetPicks(ctx context.Context, bookID string) error
}

// PlanStore persists generated plans
type PlanStore interface {
	// SavePlan stores the plan atomically. It returns false without error when a
	// plan from a newer generation is already stored.
	SavePlan(ctx context.Context, plan *StoredPlan) (bool, error)
	// GetPlan returns the stored plan of a book, nil if none
	GetPlan(ctx context.Context, bookID string) (*StoredPlan, error)
}

// GeocodeCache persists reverse-geocoding results
type GeocodeCache interface {
	// GetPlace returns a cached place not older than maxAge, nil if missing or stale
	GetPlace(ctx context.Context, key string, maxAge time.Duration) (*StoredPlace, error)
	// PutPlace stores or refreshes a cached place
	PutPlace(ctx context.Context, place *StoredPlace) error
}

// AnalysisCache persists per-photo analysis results keyed by content hash
type AnalysisCache interface {
	// GetAnalysis returns the cached JSON payload, nil if missing
	GetAnalysis(ctx context.Context, contentHash string) ([]byte, error)
	// PutAnalysis stores the JSON payload for a content hash
	PutAnalysis(ctx context.Context, contentHash string, payload []byte) error
}

// Store is the full persistence surface used by the planning pipeline
type Store interface {
	OverrideStore
	PicksStore
	PlanStore
	GeocodeCache
	AnalysisCache
}
