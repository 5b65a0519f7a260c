package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/lib/pq"
)

// Store implements database.Store using PostgreSQL
type Store struct {
	pool *Pool
}

// NewStore creates a new PostgreSQL store
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// GetOverrides returns all overrides of a book keyed by stable id
func (s *Store) GetOverrides(ctx context.Context, bookID string) (map[string]database.StopOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stable_id, override_name, hidden, updated_at
		FROM stop_overrides WHERE book_id = $1
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]database.StopOverride)
	for rows.Next() {
		o := database.StopOverride{BookID: bookID}
		var name sql.NullString
		if err := rows.Scan(&o.StableID, &name, &o.Hidden, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		if name.Valid {
			o.OverrideName = &name.String
		}
		out[o.StableID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return out, nil
}

// PutOverride merges a patch into the override of one stop.
// Fields absent from the patch keep their stored value.
func (s *Store) PutOverride(ctx context.Context, bookID, stableID string, patch database.OverridePatch) error {
	if patch.Empty() {
		return nil
	}

	var name sql.NullString
	if patch.OverrideName != nil && *patch.OverrideName != "" {
		name = sql.NullString{String: *patch.OverrideName, Valid: true}
	}
	hidden := patch.Hidden != nil && *patch.Hidden

	_, err := s.pool.Exec(ctx, `
		INSERT INTO stop_overrides (book_id, stable_id, override_name, hidden, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (book_id, stable_id) DO UPDATE SET
			override_name = CASE WHEN $5 THEN EXCLUDED.override_name ELSE stop_overrides.override_name END,
			hidden = CASE WHEN $6 THEN EXCLUDED.hidden ELSE stop_overrides.hidden END,
			updated_at = NOW()
	`, bookID, stableID, name, hidden, patch.OverrideName != nil, patch.Hidden != nil)
	if err != nil {
		return fmt.Errorf("put override: %w", err)
	}
	return nil
}

// GetPicks returns the stored picks of a book, nil if none
func (s *Store) GetPicks(ctx context.Context, bookID string) (*database.StoredPicks, error) {
	p := &database.StoredPicks{BookID: bookID}
	var highlights, gallery pq.StringArray
	err := s.pool.QueryRow(ctx, `
		SELECT source, highlights, gallery, updated_at FROM picks WHERE book_id = $1
	`, bookID).Scan(&p.Source, &highlights, &gallery, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get picks: %w", err)
	}
	p.Highlights = []string(highlights)
	p.Gallery = []string(gallery)
	return p, nil
}

// PutPicks replaces the stored picks of a book
func (s *Store) PutPicks(ctx context.Context, picks *database.StoredPicks) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO picks (book_id, source, highlights, gallery, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (book_id) DO UPDATE SET
			source = EXCLUDED.source,
			highlights = EXCLUDED.highlights,
			gallery = EXCLUDED.gallery,
			updated_at = NOW()
	`, picks.BookID, picks.Source, pq.Array(nonNil(picks.Highlights)), pq.Array(nonNil(picks.Gallery)))
	if err != nil {
		return fmt.Errorf("put picks: %w", err)
	}
	return nil
}

// ResetPicks deletes the stored picks of a book
func (s *Store) ResetPicks(ctx context.Context, bookID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM picks WHERE book_id = $1", bookID); err != nil {
		return fmt.Errorf("reset picks: %w", err)
	}
	return nil
}

// SavePlan upserts the plan unless a newer generation is already stored.
// The guard lives in the statement so concurrent writers cannot interleave.
func (s *Store) SavePlan(ctx context.Context, plan *database.StoredPlan) (bool, error) {
	res, err := s.pool.Exec(ctx, `
		INSERT INTO plans (book_id, generation_id, started_at, plan, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (book_id) DO UPDATE SET
			generation_id = EXCLUDED.generation_id,
			started_at = EXCLUDED.started_at,
			plan = EXCLUDED.plan,
			created_at = EXCLUDED.created_at
		WHERE plans.started_at <= EXCLUDED.started_at
	`, plan.BookID, plan.GenerationID, plan.StartedAt.UTC(), plan.Plan)
	if err != nil {
		return false, fmt.Errorf("save plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save plan rows affected: %w", err)
	}
	return n > 0, nil
}

// GetPlan returns the stored plan of a book, nil if none
func (s *Store) GetPlan(ctx context.Context, bookID string) (*database.StoredPlan, error) {
	p := &database.StoredPlan{BookID: bookID}
	err := s.pool.QueryRow(ctx, `
		SELECT generation_id, started_at, plan, created_at FROM plans WHERE book_id = $1
	`, bookID).Scan(&p.GenerationID, &p.StartedAt, &p.Plan, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

// GetPlace returns a cached place not older than maxAge, nil if missing or stale
func (s *Store) GetPlace(ctx context.Context, key string, maxAge time.Duration) (*database.StoredPlace, error) {
	p := &database.StoredPlace{Key: key}
	err := s.pool.QueryRow(ctx, `
		SELECT city, state, country, display_name, fetched_at
		FROM geocode_cache WHERE key = $1 AND fetched_at >= $2
	`, key, time.Now().Add(-maxAge).UTC()).Scan(&p.City, &p.State, &p.Country, &p.DisplayName, &p.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	return p, nil
}

// PutPlace stores or refreshes a cached place
func (s *Store) PutPlace(ctx context.Context, place *database.StoredPlace) error {
	fetched := place.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (key, city, state, country, display_name, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			display_name = EXCLUDED.display_name,
			fetched_at = EXCLUDED.fetched_at
	`, place.Key, place.City, place.State, place.Country, place.DisplayName, fetched.UTC())
	if err != nil {
		return fmt.Errorf("put place: %w", err)
	}
	return nil
}

// GetAnalysis returns the cached analysis payload, nil if missing
func (s *Store) GetAnalysis(ctx context.Context, contentHash string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		"SELECT payload FROM analysis_cache WHERE content_hash = $1", contentHash,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return payload, nil
}

// PutAnalysis stores the analysis payload for a content hash
func (s *Store) PutAnalysis(ctx context.Context, contentHash string, payload []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_cache (content_hash, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (content_hash) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, contentHash, payload)
	if err != nil {
		return fmt.Errorf("put analysis: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ database.Store = (*Store)(nil)
