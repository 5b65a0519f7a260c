// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/trip-book/internal/database"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu        sync.RWMutex
	overrides map[string]map[string]database.StopOverride
	picks     map[string]database.StoredPicks
	plans     map[string]database.StoredPlan
	places    map[string]database.StoredPlace
	analyses  map[string][]byte

	// Error injection
	GetOverridesError error
	PutOverrideError  error
	GetPicksError     error
	PutPicksError     error
	SavePlanError     error
	GetPlanError      error
	GetPlaceError     error
	PutPlaceError     error
	GetAnalysisError  error
	PutAnalysisError  error

	// Call counters
	PutPlaceCalls    int
	PutAnalysisCalls int
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		overrides: make(map[string]map[string]database.StopOverride),
		picks:     make(map[string]database.StoredPicks),
		plans:     make(map[string]database.StoredPlan),
		places:    make(map[string]database.StoredPlace),
		analyses:  make(map[string][]byte),
	}
}

// GetOverrides returns a copy of the overrides of a book
func (m *MockStore) GetOverrides(ctx context.Context, bookID string) (map[string]database.StopOverride, error) {
	if m.GetOverridesError != nil {
		return nil, m.GetOverridesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.overrides[bookID]), nil
}

// PutOverride merges a patch into a stop override
func (m *MockStore) PutOverride(ctx context.Context, bookID, stableID string, patch database.OverridePatch) error {
	if m.PutOverrideError != nil {
		return m.PutOverrideError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.overrides[bookID]
	if !ok {
		book = make(map[string]database.StopOverride)
		m.overrides[bookID] = book
	}
	o, exists := book[stableID]
	if !exists && patch.Empty() {
		return nil
	}
	o.BookID, o.StableID = bookID, stableID
	patch.Apply(&o)
	o.UpdatedAt = time.Now()
	book[stableID] = o
	return nil
}

// GetPicks returns the stored picks of a book
func (m *MockStore) GetPicks(ctx context.Context, bookID string) (*database.StoredPicks, error) {
	if m.GetPicksError != nil {
		return nil, m.GetPicksError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.picks[bookID]
	if !ok {
		return nil, nil
	}
	p.Highlights = slices.Clone(p.Highlights)
	p.Gallery = slices.Clone(p.Gallery)
	return &p, nil
}

// PutPicks replaces the picks of a book
func (m *MockStore) PutPicks(ctx context.Context, picks *database.StoredPicks) error {
	if m.PutPicksError != nil {
		return m.PutPicksError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *picks
	p.Highlights = slices.Clone(p.Highlights)
	p.Gallery = slices.Clone(p.Gallery)
	p.UpdatedAt = time.Now()
	m.picks[p.BookID] = p
	return nil
}

// ResetPicks removes the picks of a book
func (m *MockStore) ResetPicks(ctx context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.picks, bookID)
	return nil
}

// SavePlan stores a plan unless a newer generation is already stored
func (m *MockStore) SavePlan(ctx context.Context, plan *database.StoredPlan) (bool, error) {
	if m.SavePlanError != nil {
		return false, m.SavePlanError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.plans[plan.BookID]; ok && cur.StartedAt.After(plan.StartedAt) {
		return false, nil
	}
	p := *plan
	p.Plan = slices.Clone(p.Plan)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.plans[p.BookID] = p
	return true, nil
}

// GetPlan returns the stored plan of a book
func (m *MockStore) GetPlan(ctx context.Context, bookID string) (*database.StoredPlan, error) {
	if m.GetPlanError != nil {
		return nil, m.GetPlanError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[bookID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetPlace returns a cached place younger than maxAge
func (m *MockStore) GetPlace(ctx context.Context, key string, maxAge time.Duration) (*database.StoredPlace, error) {
	if m.GetPlaceError != nil {
		return nil, m.GetPlaceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.places[key]
	if !ok || time.Since(p.FetchedAt) > maxAge {
		return nil, nil
	}
	return &p, nil
}

// PutPlace stores a cached place
func (m *MockStore) PutPlace(ctx context.Context, place *database.StoredPlace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutPlaceCalls++
	if m.PutPlaceError != nil {
		return m.PutPlaceError
	}
	m.places[place.Key] = *place
	return nil
}

// GetAnalysis returns a cached analysis payload
func (m *MockStore) GetAnalysis(ctx context.Context, contentHash string) ([]byte, error) {
	if m.GetAnalysisError != nil {
		return nil, m.GetAnalysisError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.analyses[contentHash]), nil
}

// PutAnalysis stores an analysis payload
func (m *MockStore) PutAnalysis(ctx context.Context, contentHash string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutAnalysisCalls++
	if m.PutAnalysisError != nil {
		return m.PutAnalysisError
	}
	m.analyses[contentHash] = slices.Clone(payload)
	return nil
}

// PlanCount returns the number of stored plans
func (m *MockStore) PlanCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plans)
}

var _ database.Store = (*MockStore)(nil)
