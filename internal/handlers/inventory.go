package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/internal/inventory"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/queue"
	"github.com/jwebster45206/inventory-engine/pkg/storage"
)

// maxBodyBytes caps request bodies; inline shapes are the largest payloads.
const maxBodyBytes = 1 << 20

// InventoryService is the subset of the inventory manager the handler needs.
type InventoryService interface {
	Create(ctx context.Context, req inventory.CreateRequest) (*inventory.View, error)
	Get(ctx context.Context, id uuid.UUID) (*inventory.View, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Place(ctx context.Context, id uuid.UUID, req inventory.PlaceRequest) (*inventory.ItemView, error)
	Check(ctx context.Context, id uuid.UUID, req inventory.CheckRequest) (*inventory.CheckResult, error)
	Release(ctx context.Context, id, itemID uuid.UUID) ([]int, error)
}

var _ InventoryService = (*inventory.Manager)(nil)

// Enqueuer accepts asynchronous inventory requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

// DeliveryResponse acknowledges a queued delivery.
type DeliveryResponse struct {
	RequestID string `json:"request_id"`
}

// ReleaseResponse lists the cells freed by a release.
type ReleaseResponse struct {
	ItemID  uuid.UUID `json:"item_id"`
	Indices []int     `json:"indices"`
}

type InventoryHandler struct {
	service InventoryService
	queue   Enqueuer
	logger  *slog.Logger
}

func NewInventoryHandler(service InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		logger:  logger,
	}
}

// WithQueue enables the deliveries endpoint.
func (h *InventoryHandler) WithQueue(q Enqueuer) *InventoryHandler {
	h.queue = q
	return h
}

// ServeHTTP handles HTTP requests for inventory operations
// Routes:
// POST   /v1/inventory                     - Create inventory
// GET    /v1/inventory/{id}                - Read inventory
// DELETE /v1/inventory/{id}                - Delete inventory
// POST   /v1/inventory/{id}/items          - Place item (auto-place without origin)
// DELETE /v1/inventory/{id}/items/{itemID} - Release item
// POST   /v1/inventory/{id}/check          - Test a placement without committing
// POST   /v1/inventory/{id}/deliveries     - Queue an item for auto-placement
func (h *InventoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/inventory"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid inventory ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid inventory ID format")
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			h.methodNotAllowed(w, r, "GET, DELETE")
		}

	case len(parts) == 2 && parts[1] == "items":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handlePlace(w, r, id)

	case len(parts) == 2 && parts[1] == "check":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleCheck(w, r, id)

	case len(parts) == 2 && parts[1] == "deliveries":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleDeliver(w, r, id)

	case len(parts) == 3 && parts[1] == "items":
		itemID, err := uuid.Parse(parts[2])
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid item ID format")
			return
		}
		if r.Method != http.MethodDelete {
			h.methodNotAllowed(w, r, "DELETE")
			return
		}
		h.handleRelease(w, r, id, itemID)

	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown inventory route")
	}
}

func (h *InventoryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req inventory.CreateRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	v, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to create inventory")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, v)
}

func (h *InventoryHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Failed to load inventory")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, v)
}

func (h *InventoryHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "Failed to delete inventory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) handlePlace(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req inventory.PlaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.Place(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to place item")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, item)
}

func (h *InventoryHandler) handleCheck(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req inventory.CheckRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Check(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to check placement")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *InventoryHandler) handleDeliver(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if h.queue == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "Delivery queue is not enabled")
		return
	}

	var body inventory.PlaceRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.ShapeID == "" && body.Shape == nil {
		h.writeServiceError(w, inventory.ErrNoShape, "Failed to queue delivery")
		return
	}
	if body.ShapeID == "" && body.Shape.IsEmpty() {
		h.writeServiceError(w, placement.ErrEmptyShape, "Failed to queue delivery")
		return
	}
	// fail fast on unknown inventories rather than in the worker
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "Failed to queue delivery")
		return
	}

	req := queue.NewDelivery(id, body.ShapeID, body.Payload)
	req.Shape = body.Shape
	req.Anchor = body.Anchor
	req.Origin = body.Origin
	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue delivery", "inventory_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue delivery")
		return
	}

	h.logger.Info("Delivery queued", "inventory_id", id, "request_id", req.RequestID, "shape", body.ShapeID)
	writeJSON(w, h.logger, http.StatusAccepted, DeliveryResponse{RequestID: req.RequestID})
}

func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request, id, itemID uuid.UUID) {
	freed, err := h.service.Release(r.Context(), id, itemID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to release item")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReleaseResponse{ItemID: itemID, Indices: freed})
}

func (h *InventoryHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *InventoryHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for inventory endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

// writeServiceError maps service errors to status codes.
func (h *InventoryHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Inventory not found")
	case errors.Is(err, inventory.ErrItemNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Item not found")
	case errors.Is(err, placement.ErrCannotPlace), errors.Is(err, placement.ErrNoSpace):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrShapeNotFound),
		errors.Is(err, inventory.ErrInvalidSize),
		errors.Is(err, inventory.ErrNoShape),
		errors.Is(err, placement.ErrEmptyShape):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msg)
	}
}
