package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeDeliver puts a new item into an inventory, auto-placing it
	// when no origin is given
	RequestTypeDeliver RequestType = "deliver"

	// RequestTypeRelease removes an item from an inventory
	RequestTypeRelease RequestType = "release"
)

// Request is one queued inventory mutation
type Request struct {
	RequestID   string      `json:"request_id"`
	Type        RequestType `json:"type"`
	InventoryID uuid.UUID   `json:"inventory_id"`

	// Deliver-specific fields
	ShapeID string          `json:"shape,omitempty"`
	Shape   *shape.Mask     `json:"inline_shape,omitempty"`
	Anchor  shape.Point     `json:"anchor"`
	Origin  *shape.Point    `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Release-specific fields
	ItemID uuid.UUID `json:"item_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
	// Attempts counts how often the request was put back because its
	// inventory was locked
	Attempts int `json:"attempts,omitempty"`
}

// NewDelivery builds a deliver request with a fresh request ID
func NewDelivery(inventoryID uuid.UUID, shapeID string, payload json.RawMessage) *Request {
	return &Request{
		RequestID:   uuid.New().String(),
		Type:        RequestTypeDeliver,
		InventoryID: inventoryID,
		ShapeID:     shapeID,
		Payload:     payload,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
