package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/inventory-engine/internal/inventory"
	"github.com/jwebster45206/inventory-engine/internal/logger"
	"github.com/jwebster45206/inventory-engine/internal/services/events"
	"github.com/jwebster45206/inventory-engine/internal/services/queue"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	queuePkg "github.com/jwebster45206/inventory-engine/pkg/queue"
	"github.com/jwebster45206/inventory-engine/pkg/storage"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
	// maxAttempts bounds how often a request is put back while its
	// inventory is locked by another worker
	maxAttempts = 20
)

// InventoryService is the subset of the inventory manager a worker drives.
type InventoryService interface {
	Place(ctx context.Context, id uuid.UUID, req inventory.PlaceRequest) (*inventory.ItemView, error)
	Release(ctx context.Context, id, itemID uuid.UUID) ([]int, error)
}

var _ InventoryService = (*inventory.Manager)(nil)

// Worker applies queued inventory requests
type Worker struct {
	id          string
	queue       *queue.DeliveryQueue
	service     InventoryService
	publisher   inventory.Publisher
	redisClient *redis.Client
	log         *slog.Logger
	pollTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance. publisher may be nil.
func New(q *queue.DeliveryQueue, service InventoryService, publisher inventory.Publisher, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		service:     service,
		publisher:   publisher,
		redisClient: redisClient,
		log:         log.With("worker_id", workerID),
		pollTimeout: workerTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker's identifier
func (w *Worker) ID() string { return w.id }

// Start begins processing requests from the queue. It returns after Stop.
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				if w.ctx.Err() != nil {
					continue
				}
				w.log.Error("Error processing request", "error", err)
				// Continue processing even on error
				select {
				case <-time.After(time.Second):
				case <-w.ctx.Done():
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, w.pollTimeout)
	if err != nil {
		return err
	}
	if req == nil {
		// timeout; lets Start check for shutdown
		return nil
	}

	w.log.Info("Received request from queue",
		"request_id", req.RequestID,
		"type", req.Type,
		"inventory_id", req.InventoryID.String(),
	)

	locked, err := w.acquireLock(req.InventoryID)
	if err != nil {
		return fmt.Errorf("failed to acquire inventory lock: %w", err)
	}
	if !locked {
		return w.requeue(req)
	}

	defer w.releaseLock(req.InventoryID)
	return w.processRecovered(req)
}

// processRecovered runs processRequest and turns a panic into a failed
// request so one bad payload cannot take the process down.
func (w *Worker) processRecovered(req *queuePkg.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(req, fmt.Sprintf("internal error: %v", r))
			err = fmt.Errorf("panic processing request %s: %v", req.RequestID, r)
		}
	}()
	return w.processRequest(req)
}

func requestLogger(log *slog.Logger, req *queuePkg.Request) *slog.Logger {
	return logger.WithInventory(logger.WithRequestID(log, req.RequestID), req.InventoryID.String())
}

// requeue puts a request for a locked inventory back at the end of the
// queue, giving up after maxAttempts.
func (w *Worker) requeue(req *queuePkg.Request) error {
	req.Attempts++
	if req.Attempts > maxAttempts {
		w.fail(req, fmt.Sprintf("inventory stayed locked for %d attempts", maxAttempts))
		return nil
	}
	w.log.Info("Inventory already locked, re-queueing request",
		"request_id", req.RequestID,
		"inventory_id", req.InventoryID.String(),
		"attempts", req.Attempts,
	)
	if err := w.queue.Enqueue(w.ctx, req); err != nil {
		return fmt.Errorf("failed to re-queue request: %w", err)
	}
	return nil
}

func lockKey(inventoryID uuid.UUID) string {
	return fmt.Sprintf("inventory-lock:%s", inventoryID.String())
}

// acquireLock returns true if the lock was acquired, false if another
// worker holds it
func (w *Worker) acquireLock(inventoryID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(inventoryID), w.id, lockTTL).Result()
}

// releaseScript deletes the lock only if this worker still owns it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (w *Worker) releaseLock(inventoryID uuid.UUID) {
	// the worker context may already be cancelled during shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, w.redisClient, []string{lockKey(inventoryID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release inventory lock", "error", err, "inventory_id", inventoryID.String())
	}
}

// processRequest applies one request. Requests the inventory rejects are
// recorded as failed and are not errors; anything else is returned.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()
	log := requestLogger(w.log, req)

	var err error
	switch req.Type {
	case queuePkg.RequestTypeDeliver:
		var item *inventory.ItemView
		item, err = w.service.Place(w.ctx, req.InventoryID, inventory.PlaceRequest{
			ShapeID: req.ShapeID,
			Shape:   req.Shape,
			Anchor:  req.Anchor,
			Origin:  req.Origin,
			Payload: req.Payload,
		})
		if err == nil {
			log.Info("Delivery placed",
				"item_id", item.ID,
				"origin", item.Origin,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}

	case queuePkg.RequestTypeRelease:
		var freed []int
		freed, err = w.service.Release(w.ctx, req.InventoryID, req.ItemID)
		if err == nil {
			log.Info("Release applied",
				"item_id", req.ItemID,
				"cells", len(freed),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}

	default:
		w.fail(req, fmt.Sprintf("unknown request type: %s", req.Type))
		return nil
	}

	if err == nil {
		return nil
	}
	w.fail(req, err.Error())
	if rejected(err) {
		return nil
	}
	return fmt.Errorf("failed to process request %s: %w", req.RequestID, err)
}

// rejected reports whether err is the inventory refusing the request, as
// opposed to an infrastructure failure.
func rejected(err error) bool {
	return errors.Is(err, placement.ErrCannotPlace) ||
		errors.Is(err, placement.ErrNoSpace) ||
		errors.Is(err, placement.ErrEmptyShape) ||
		errors.Is(err, inventory.ErrNotFound) ||
		errors.Is(err, inventory.ErrItemNotFound) ||
		errors.Is(err, inventory.ErrNoShape) ||
		errors.Is(err, storage.ErrShapeNotFound)
}

func (w *Worker) fail(req *queuePkg.Request, reason string) {
	log := requestLogger(w.log, req)
	log.Warn("Request failed", "type", req.Type, "reason", reason)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.queue.Fail(ctx, req, reason); err != nil {
		log.Error("Failed to record failed request", "error", err)
	}

	if w.publisher == nil {
		return
	}
	ev := events.NewEvent(events.EventTypeRequestFailed, req.InventoryID)
	ev.Data = map[string]interface{}{
		"request_id": req.RequestID,
		"type":       string(req.Type),
		"reason":     reason,
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		log.Error("Failed to publish failure event", "error", err)
	}
}
