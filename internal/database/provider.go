package database

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned when no storage backend has been registered.
var ErrNotInitialized = errors.New("storage backend not initialized: set DATABASE_URL or TRIPBOOK_SQLITE_PATH")

var (
	mu          sync.RWMutex
	storeFn     func() Store
	backendName string
)

// RegisterStore registers the active storage backend.
// This is called by the postgres and sqlite packages to avoid import cycles.
func RegisterStore(name string, fn func() Store) {
	mu.Lock()
	defer mu.Unlock()
	storeFn = fn
	backendName = name
}

// GetStore returns the registered store
func GetStore(ctx context.Context) (Store, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storeFn == nil {
		return nil, ErrNotInitialized
	}
	return storeFn(), nil
}

// Backend returns the name of the registered backend, empty if none
func Backend() string {
	mu.RLock()
	defer mu.RUnlock()
	return backendName
}

// ResetForTesting clears the registered backend
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	storeFn = nil
	backendName = ""
}
