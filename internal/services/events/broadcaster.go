package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeCreated       EventType = "inventory.created"
	EventTypeItemPlaced    EventType = "inventory.item_placed"
	EventTypeItemReleased  EventType = "inventory.item_released"
	EventTypeLoaded        EventType = "inventory.loaded"
	EventTypeDeleted       EventType = "inventory.deleted"
	EventTypeRequestFailed EventType = "inventory.request_failed"
)

// DefaultHistoryLength is the number of events kept per inventory.
const DefaultHistoryLength = 100

// Event represents a generic event structure. ID is unique per event so a
// subscriber can recognize an event it already got from the history.
type Event struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	InventoryID string                 `json:"inventory_id"`
	ItemID      string                 `json:"item_id,omitempty"`
	Indices     []int                  `json:"indices,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Time        time.Time              `json:"time"`
}

// NewEvent creates an event with a fresh ID, stamped with the current time
func NewEvent(t EventType, inventoryID uuid.UUID) Event {
	return Event{ID: uuid.NewString(), Type: t, InventoryID: inventoryID.String(), Time: time.Now().UTC()}
}

// Broadcaster publishes events to Redis Pub/Sub and keeps a short per-inventory
// history list
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
	historyLen  int64
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
		historyLen:  DefaultHistoryLength,
	}
}

// Channel returns the pub/sub channel for an inventory
func Channel(inventoryID string) string {
	return fmt.Sprintf("inventory-events:%s", inventoryID)
}

func historyKey(inventoryID string) string {
	return fmt.Sprintf("inventory-history:%s", inventoryID)
}

// Publish sends event to the inventory's channel and appends it to the history
func (b *Broadcaster) Publish(ctx context.Context, event Event) error {
	channel := Channel(event.InventoryID)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := historyKey(event.InventoryID)
	_, err = b.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, channel, data)
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -b.historyLen, -1)
		return nil
	})
	if err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"item_id", event.ItemID,
	)

	return nil
}

// History returns the retained events for an inventory, oldest first
func (b *Broadcaster) History(ctx context.Context, inventoryID uuid.UUID) ([]Event, error) {
	key := historyKey(inventoryID.String())

	raw, err := b.redisClient.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		b.logger.Error("Failed to read event history", "error", err, "key", key)
		return nil, fmt.Errorf("failed to read event history: %w", err)
	}

	out := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			b.logger.Warn("Skipping malformed history entry", "error", err, "key", key)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// ClearHistory drops the retained events for an inventory
func (b *Broadcaster) ClearHistory(ctx context.Context, inventoryID uuid.UUID) error {
	if err := b.redisClient.Del(ctx, historyKey(inventoryID.String())).Err(); err != nil {
		return fmt.Errorf("failed to clear event history: %w", err)
	}
	return nil
}
