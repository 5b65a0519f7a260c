// Package postgres implements the trip-book store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/logging"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const connectTimeout = 10 * time.Second

// Pool wraps the lib/pq connection pool shared by the store.
type Pool struct {
	db  *sql.DB
	log logrus.FieldLogger
}

var (
	activePool *Pool
	activeMu   sync.RWMutex
)

// NewPool opens the database at cfg.URL and checks it answers.
func NewPool(cfg *config.DatabaseConfig, log logrus.FieldLogger) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if log == nil {
		log = logging.Discard()
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{db: db, log: log.WithField("backend", "postgres")}, nil
}

// Close releases all connections.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// SetGlobalPool records the pool opened by Initialize.
func SetGlobalPool(p *Pool) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activePool = p
}

// GetGlobalPool returns the pool opened by Initialize, or nil.
func GetGlobalPool() *Pool {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activePool
}

// Initialize opens the pool, migrates it and registers it as the "postgres"
// store backend.
func Initialize(cfg *config.DatabaseConfig, log logrus.FieldLogger) error {
	pool, err := NewPool(cfg, log)
	if err != nil {
		return err
	}
	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return fmt.Errorf("migrate postgres: %w", err)
	}

	SetGlobalPool(pool)
	store := NewStore(pool)
	database.RegisterStore("postgres", func() database.Store { return store })
	return nil
}
