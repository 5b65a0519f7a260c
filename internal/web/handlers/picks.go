package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/sirupsen/logrus"
)

// PicksHandler stores user highlight selections
type PicksHandler struct {
	store database.Store
	log   logrus.FieldLogger
}

// NewPicksHandler creates a new picks handler
func NewPicksHandler(store database.Store, log logrus.FieldLogger) *PicksHandler {
	return &PicksHandler{store: store, log: log}
}

// PicksRequest is the body of PUT /books/{id}/picks
type PicksRequest struct {
	Highlights []string `json:"highlights"`
	Gallery    []string `json:"gallery"`
}

// Set stores the user's picks. Later generations keep them until reset.
func (h *PicksHandler) Set(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var req PicksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	highlights, err := cleanIDs(req.Highlights)
	if err != nil {
		respondError(w, http.StatusBadRequest, "highlights: "+err.Error())
		return
	}
	gallery, err := cleanIDs(req.Gallery)
	if err != nil {
		respondError(w, http.StatusBadRequest, "gallery: "+err.Error())
		return
	}
	if len(highlights) == 0 && len(gallery) == 0 {
		respondError(w, http.StatusBadRequest, "picks must contain at least one photo, use DELETE to reset")
		return
	}

	picks := &database.StoredPicks{
		BookID:     id,
		Source:     database.PicksSourceUser,
		Highlights: highlights,
		Gallery:    gallery,
	}
	if err := h.store.PutPicks(r.Context(), picks); err != nil {
		h.log.WithField("book", sanitizeForLog(id)).WithError(err).Error("failed to save picks")
		respondError(w, http.StatusInternalServerError, "failed to save picks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"source":     picks.Source,
		"highlights": picks.Highlights,
		"gallery":    picks.Gallery,
	})
}

// Reset deletes the user's picks so the next generation selects automatically
func (h *PicksHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	if err := h.store.ResetPicks(r.Context(), id); err != nil {
		h.log.WithFields(logrus.Fields{"book": sanitizeForLog(id)}).WithError(err).Error("failed to reset picks")
		respondError(w, http.StatusInternalServerError, "failed to reset picks")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cleanIDs trims ids and rejects empty or repeated ones, keeping order.
func cleanIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.New("empty photo id")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("photo %s listed twice", id)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
