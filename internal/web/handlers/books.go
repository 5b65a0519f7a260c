package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/pipeline"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/sirupsen/logrus"
)

// BooksHandler serves plan generation and inspection
type BooksHandler struct {
	gen *pipeline.Generator
	log logrus.FieldLogger
}

// NewBooksHandler creates a new books handler
func NewBooksHandler(gen *pipeline.Generator, log logrus.FieldLogger) *BooksHandler {
	return &BooksHandler{gen: gen, log: log}
}

// GenerateRequest is the body of POST /books/{id}/plan
type GenerateRequest struct {
	Title       string                 `json:"title"`
	Assets      []manifest.AssetRecord `json:"assets"`
	Modes       planner.Modes          `json:"modes"`
	PicksSource string                 `json:"picksSource,omitempty"`
}

// Generate runs the pipeline for a book and returns the plan with its debug payload
func (h *BooksHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	body := http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Assets) > constants.MaxAssetsPerBook {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("too many assets (max %d)", constants.MaxAssetsPerBook))
		return
	}
	if !req.Modes.Valid() {
		respondError(w, http.StatusBadRequest, "unknown chapter, map or legend mode")
		return
	}
	switch req.PicksSource {
	case "", database.PicksSourceAuto, database.PicksSourceEnhanced:
	default:
		respondError(w, http.StatusBadRequest, "picksSource must be auto or enhanced")
		return
	}

	res, err := h.gen.Generate(r.Context(), id, pipeline.Request{
		Title:       req.Title,
		Assets:      req.Assets,
		Modes:       req.Modes,
		PicksSource: req.PicksSource,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.WithField("book", sanitizeForLog(id)).WithError(err).Error("plan generation failed")
			respondError(w, status, "plan generation failed")
			return
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// GetPlan returns the last stored plan of a book
func (h *BooksHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	plan, err := h.gen.LatestPlan(r.Context(), id)
	if err != nil {
		h.log.WithField("book", sanitizeForLog(id)).WithError(err).Error("failed to load plan")
		respondError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}
	if plan == nil {
		respondError(w, http.StatusNotFound, "no plan generated for this book")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// Debug returns segments, stops, quality metrics, duplicates and suggestions
// of the last generation this server saved for the book
func (h *BooksHandler) Debug(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	d, found := h.gen.LatestDebug(id)
	if !found {
		respondError(w, http.StatusNotFound, "no generation recorded for this book")
		return
	}
	respondJSON(w, http.StatusOK, d)
}
