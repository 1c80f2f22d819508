package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/inventory-engine/internal/services/events"
)

// HistorySource returns the retained events of an inventory.
type HistorySource interface {
	History(ctx context.Context, inventoryID uuid.UUID) ([]events.Event, error)
}

// EventsHandler handles Server-Sent Events (SSE) for real-time inventory updates
type EventsHandler struct {
	redisClient *redis.Client
	history     HistorySource
	logger      *slog.Logger
	keepalive   time.Duration
}

// NewEventsHandler creates a new events handler. history may be nil.
func NewEventsHandler(redisClient *redis.Client, history HistorySource, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		redisClient: redisClient,
		history:     history,
		logger:      logger,
		keepalive:   30 * time.Second,
	}
}

// ServeHTTP handles SSE requests for inventory events
// GET /v1/events/inventory/{id}
// Retained history is replayed first, then live events are streamed.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.Warn("Method not allowed for events endpoint",
			"method", r.Method,
			"path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "events" || pathParts[2] != "inventory" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/events/inventory/{id}")
		return
	}

	inventoryID, err := uuid.Parse(pathParts[3])
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid inventory ID format.")
		return
	}

	h.logger.Info("SSE connection established",
		"inventory_id", inventoryID.String(),
		"remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Subscribe before replaying so nothing published in between is lost
	channel := events.Channel(inventoryID.String())
	pubsub := h.redisClient.Subscribe(r.Context(), channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	if _, err := pubsub.Receive(r.Context()); err != nil {
		h.logger.Error("Failed to subscribe", "error", err, "channel", channel)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to subscribe to events")
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	h.sendSSE(w, "connected", map[string]interface{}{
		"inventory_id": inventoryID.String(),
		"message":      "Connected to event stream",
	})

	// IDs of replayed events; the subscription may deliver them again
	replayed := make(map[string]struct{})
	if h.history != nil {
		past, err := h.history.History(r.Context(), inventoryID)
		if err != nil {
			h.logger.Warn("Failed to load event history", "error", err, "inventory_id", inventoryID)
		}
		for _, ev := range past {
			if ev.ID != "" {
				replayed[ev.ID] = struct{}{}
			}
			h.sendSSE(w, string(ev.Type), ev)
		}
	}

	msgChan := pubsub.Channel()
	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected",
				"inventory_id", inventoryID.String())
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if _, seen := replayed[event.ID]; seen {
				delete(replayed, event.ID)
				continue
			}
			h.sendSSE(w, string(event.Type), event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSE sends a Server-Sent Event to the client
func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
