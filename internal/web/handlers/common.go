// Package handlers implements the HTTP handlers of the book planning API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/pipeline"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// bookID returns the trimmed {id} URL parameter, writing a 400 when it is empty.
func bookID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing book id")
		return "", false
	}
	return id, true
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, manifest.ErrMissingID),
		errors.Is(err, manifest.ErrDuplicateID),
		errors.Is(err, manifest.ErrInvalidCoordinate),
		errors.Is(err, manifest.ErrUnknownStatus),
		errors.Is(err, manifest.ErrMixedOffsets),
		errors.Is(err, timeline.ErrUnsorted),
		errors.Is(err, planner.ErrUnsortedInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
