// Package constants provides shared constants used across the codebase.
package constants

// HTTP handler constants
const (
	// MaxRequestBodyBytes limits manifest uploads to the generate endpoint
	MaxRequestBodyBytes = 32 << 20

	// MaxAssetsPerBook is the largest manifest accepted for a single generation
	MaxAssetsPerBook = 10000
)
