package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/trip-book/internal/database"
)

// Store implements database.Store on SQLite
type Store struct {
	db *DB
}

// NewStore creates a store over an opened database
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// GetOverrides returns all overrides of a book keyed by stable id
func (s *Store) GetOverrides(ctx context.Context, bookID string) (map[string]database.StopOverride, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT stable_id, override_name, hidden, updated_at FROM stop_overrides WHERE book_id = ?", bookID)
	if err != nil {
		return nil, fmt.Errorf("get overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]database.StopOverride)
	for rows.Next() {
		o := database.StopOverride{BookID: bookID}
		var name sql.NullString
		var updated int64
		if err := rows.Scan(&o.StableID, &name, &o.Hidden, &updated); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		if name.Valid {
			o.OverrideName = &name.String
		}
		o.UpdatedAt = fromNanos(updated)
		out[o.StableID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return out, nil
}

// PutOverride merges a patch into the override of one stop
func (s *Store) PutOverride(ctx context.Context, bookID, stableID string, patch database.OverridePatch) error {
	if patch.Empty() {
		return nil
	}

	var name sql.NullString
	if patch.OverrideName != nil && *patch.OverrideName != "" {
		name = sql.NullString{String: *patch.OverrideName, Valid: true}
	}
	hidden := patch.Hidden != nil && *patch.Hidden

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO stop_overrides (book_id, stable_id, override_name, hidden, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5)
		ON CONFLICT (book_id, stable_id) DO UPDATE SET
			override_name = CASE WHEN ?6 THEN excluded.override_name ELSE stop_overrides.override_name END,
			hidden = CASE WHEN ?7 THEN excluded.hidden ELSE stop_overrides.hidden END,
			updated_at = excluded.updated_at
	`, bookID, stableID, name, hidden, nanos(time.Now()), patch.OverrideName != nil, patch.Hidden != nil)
	if err != nil {
		return fmt.Errorf("put override: %w", err)
	}
	return nil
}

// GetPicks returns the stored picks of a book, nil if none
func (s *Store) GetPicks(ctx context.Context, bookID string) (*database.StoredPicks, error) {
	p := &database.StoredPicks{BookID: bookID}
	var highlights, gallery string
	var updated int64
	err := s.db.db.QueryRowContext(ctx,
		"SELECT source, highlights, gallery, updated_at FROM picks WHERE book_id = ?", bookID,
	).Scan(&p.Source, &highlights, &gallery, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get picks: %w", err)
	}
	if err := json.Unmarshal([]byte(highlights), &p.Highlights); err != nil {
		return nil, fmt.Errorf("decode highlights: %w", err)
	}
	if err := json.Unmarshal([]byte(gallery), &p.Gallery); err != nil {
		return nil, fmt.Errorf("decode gallery: %w", err)
	}
	p.UpdatedAt = fromNanos(updated)
	return p, nil
}

// PutPicks replaces the stored picks of a book
func (s *Store) PutPicks(ctx context.Context, picks *database.StoredPicks) error {
	highlights, err := json.Marshal(nonNil(picks.Highlights))
	if err != nil {
		return fmt.Errorf("encode highlights: %w", err)
	}
	gallery, err := json.Marshal(nonNil(picks.Gallery))
	if err != nil {
		return fmt.Errorf("encode gallery: %w", err)
	}
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO picks (book_id, source, highlights, gallery, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (book_id) DO UPDATE SET
			source = excluded.source,
			highlights = excluded.highlights,
			gallery = excluded.gallery,
			updated_at = excluded.updated_at
	`, picks.BookID, picks.Source, string(highlights), string(gallery), nanos(time.Now()))
	if err != nil {
		return fmt.Errorf("put picks: %w", err)
	}
	return nil
}

// ResetPicks deletes the stored picks of a book
func (s *Store) ResetPicks(ctx context.Context, bookID string) error {
	if _, err := s.db.db.ExecContext(ctx, "DELETE FROM picks WHERE book_id = ?", bookID); err != nil {
		return fmt.Errorf("reset picks: %w", err)
	}
	return nil
}

// SavePlan upserts the plan unless a newer generation is already stored
func (s *Store) SavePlan(ctx context.Context, plan *database.StoredPlan) (bool, error) {
	res, err := s.db.db.ExecContext(ctx, `
		INSERT INTO plans (book_id, generation_id, started_at, plan, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (book_id) DO UPDATE SET
			generation_id = excluded.generation_id,
			started_at = excluded.started_at,
			plan = excluded.plan,
			created_at = excluded.created_at
		WHERE plans.started_at <= excluded.started_at
	`, plan.BookID, plan.GenerationID, nanos(plan.StartedAt), plan.Plan, nanos(time.Now()))
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
	var started, created int64
	err := s.db.db.QueryRowContext(ctx,
		"SELECT generation_id, started_at, plan, created_at FROM plans WHERE book_id = ?", bookID,
	).Scan(&p.GenerationID, &started, &p.Plan, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	p.StartedAt, p.CreatedAt = fromNanos(started), fromNanos(created)
	return p, nil
}

// GetPlace returns a cached place not older than maxAge, nil if missing or stale
func (s *Store) GetPlace(ctx context.Context, key string, maxAge time.Duration) (*database.StoredPlace, error) {
	p := &database.StoredPlace{Key: key}
	var fetched int64
	err := s.db.db.QueryRowContext(ctx, `
		SELECT city, state, country, display_name, fetched_at
		FROM geocode_cache WHERE key = ? AND fetched_at >= ?
	`, key, nanos(time.Now().Add(-maxAge))).Scan(&p.City, &p.State, &p.Country, &p.DisplayName, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	p.FetchedAt = fromNanos(fetched)
	return p, nil
}

// PutPlace stores or refreshes a cached place
func (s *Store) PutPlace(ctx context.Context, place *database.StoredPlace) error {
	fetched := place.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (key, city, state, country, display_name, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			city = excluded.city,
			state = excluded.state,
			country = excluded.country,
			display_name = excluded.display_name,
			fetched_at = excluded.fetched_at
	`, place.Key, place.City, place.State, place.Country, place.DisplayName, nanos(fetched))
	if err != nil {
		return fmt.Errorf("put place: %w", err)
	}
	return nil
}

// GetAnalysis returns the cached analysis payload, nil if missing
func (s *Store) GetAnalysis(ctx context.Context, contentHash string) ([]byte, error) {
	var payload []byte
	err := s.db.db.QueryRowContext(ctx,
		"SELECT payload FROM analysis_cache WHERE content_hash = ?", contentHash,
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
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (content_hash, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (content_hash) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, contentHash, payload, nanos(time.Now()))
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
