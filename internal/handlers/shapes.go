package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/inventory-engine/pkg/shape"
	"github.com/jwebster45206/inventory-engine/pkg/storage"
)

// ShapeSummary is one entry of the shape listing.
type ShapeSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  int    `json:"cells"`
}

type ShapesHandler struct {
	log     *slog.Logger
	storage storage.Storage
}

func NewShapesHandler(log *slog.Logger, storage storage.Storage) *ShapesHandler {
	return &ShapesHandler{
		log:     log,
		storage: storage,
	}
}

// ServeHTTP handles shape catalog requests
// Routes:
// GET /v1/shapes      - List shapes
// GET /v1/shapes/{id} - Get one shape
func (h *ShapesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/shapes"), "/")
	if id == "" {
		h.handleList(w, r)
		return
	}
	if strings.Contains(id, "..") || strings.Contains(id, "/") {
		writeError(w, h.log, http.StatusBadRequest, "Invalid shape ID")
		return
	}
	h.handleGet(w, r, id)
}

func (h *ShapesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := h.storage.ListShapes(ctx)
	if err != nil {
		h.log.Error("Failed to list shapes", "error", err)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to list shapes")
		return
	}

	out := make([]ShapeSummary, 0, len(ids))
	for _, id := range ids {
		m, err := h.storage.GetShape(ctx, id)
		if err != nil {
			h.log.Warn("Skipping unreadable shape", "id", id, "error", err)
			continue
		}
		out = append(out, summarize(m))
	}
	writeJSON(w, h.log, http.StatusOK, out)
}

func (h *ShapesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.storage.GetShape(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrShapeNotFound) {
			writeError(w, h.log, http.StatusNotFound, "Shape not found")
			return
		}
		h.log.Error("Failed to get shape", "error", err, "id", id)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to retrieve shape")
		return
	}
	writeJSON(w, h.log, http.StatusOK, m)
}

func summarize(m *shape.Mask) ShapeSummary {
	return ShapeSummary{
		ID:     m.ID,
		Name:   m.DisplayName(),
		Width:  m.Width,
		Height: m.Height,
		Cells:  m.Count(),
	}
}
