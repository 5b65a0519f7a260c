package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/sirupsen/logrus"
)

// StopsHandler manages per-stop user overrides
type StopsHandler struct {
	store database.Store
	log   logrus.FieldLogger
}

// NewStopsHandler creates a new stops handler
func NewStopsHandler(store database.Store, log logrus.FieldLogger) *StopsHandler {
	return &StopsHandler{store: store, log: log}
}

// OverrideResponse is one stored stop override
type OverrideResponse struct {
	StableID     string    `json:"stableId"`
	OverrideName *string   `json:"overrideName,omitempty"`
	Hidden       bool      `json:"hidden"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ListOverrides returns the overrides of a book ordered by stable id
func (h *StopsHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	overrides, err := h.store.GetOverrides(r.Context(), id)
	if err != nil {
		h.log.WithField("book", sanitizeForLog(id)).WithError(err).Error("failed to load overrides")
		respondError(w, http.StatusInternalServerError, "failed to load overrides")
		return
	}

	out := make([]OverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, OverrideResponse{
			StableID:     o.StableID,
			OverrideName: o.OverrideName,
			Hidden:       o.Hidden,
			UpdatedAt:    o.UpdatedAt,
		})
	}
	slices.SortFunc(out, func(a, b OverrideResponse) int { return strings.Compare(a.StableID, b.StableID) })
	respondJSON(w, http.StatusOK, out)
}

// Patch renames, hides or unhides one stop. Fields absent from the body are
// left unchanged, an empty overrideName restores the derived name.
func (h *StopsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	stableID := strings.TrimSpace(chi.URLParam(r, "stableId"))
	if stableID == "" {
		respondError(w, http.StatusBadRequest, "missing stop id")
		return
	}

	var patch database.OverridePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if patch.Empty() {
		respondError(w, http.StatusBadRequest, "patch must set overrideName or hidden")
		return
	}
	if patch.OverrideName != nil {
		name := strings.TrimSpace(*patch.OverrideName)
		patch.OverrideName = &name
	}

	if err := h.store.PutOverride(r.Context(), id, stableID, patch); err != nil {
		h.log.WithFields(logrus.Fields{
			"book": sanitizeForLog(id),
			"stop": sanitizeForLog(stableID),
		}).WithError(err).Error("failed to save override")
		respondError(w, http.StatusInternalServerError, "failed to save override")
		return
	}

	overrides, err := h.store.GetOverrides(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load overrides")
		return
	}
	o := overrides[stableID]
	respondJSON(w, http.StatusOK, OverrideResponse{
		StableID:     stableID,
		OverrideName: o.OverrideName,
		Hidden:       o.Hidden,
		UpdatedAt:    o.UpdatedAt,
	})
}
