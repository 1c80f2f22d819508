package worker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/inventory-engine/internal/inventory"
	"github.com/jwebster45206/inventory-engine/internal/services/events"
	"github.com/jwebster45206/inventory-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/inventory-engine/pkg/queue"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
	"github.com/jwebster45206/inventory-engine/pkg/storage"
)

type testEnv struct {
	mr          *miniredis.Miniredis
	rdb         *redis.Client
	queue       *queue.DeliveryQueue
	manager     *inventory.Manager
	broadcaster *events.Broadcaster
	worker      *Worker
}

func setupWorker(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := storage.NewMockStorage()
	store.AddShape("rusted_sword", shape.MustParse("#", "#", "#"))
	store.AddShape("pebble", shape.MustParse("#"))

	broadcaster := events.NewBroadcaster(rdb, logger)
	manager := inventory.NewManager(store, broadcaster, logger, 2, 3)
	q := queue.NewDeliveryQueue(queue.NewClientFrom(rdb, logger))

	w := New(q, manager, broadcaster, rdb, logger, "worker-test")
	w.pollTimeout = time.Second
	t.Cleanup(w.Stop)

	return &testEnv{mr: mr, rdb: rdb, queue: q, manager: manager, broadcaster: broadcaster, worker: w}
}

func (e *testEnv) failureTypes(t *testing.T, id uuid.UUID) []string {
	t.Helper()
	history, err := e.broadcaster.History(context.Background(), id)
	require.NoError(t, err)
	var reasons []string
	for _, ev := range history {
		if ev.Type == events.EventTypeRequestFailed {
			reasons = append(reasons, ev.Data["reason"].(string))
		}
	}
	return reasons
}

func TestWorker_DeliversUntilFull(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	inv, err := env.manager.Create(ctx, inventory.CreateRequest{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.queue.Enqueue(ctx, queuePkg.NewDelivery(inv.ID, "rusted_sword", nil)))
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, env.worker.processNextRequest())
	}

	v, err := env.manager.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	assert.Equal(t, shape.Point{X: 0, Y: 0}, v.Items[0].Origin)
	assert.Equal(t, shape.Point{X: 1, Y: 0}, v.Items[1].Origin)
	assert.Equal(t, 0, v.FreeCount)

	failed, err := env.queue.Failed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Reason, "no space")
	assert.Len(t, env.failureTypes(t, inv.ID), 1)

	assert.False(t, env.mr.Exists(lockKey(inv.ID)), "lock is released after processing")
}

func TestWorker_Release(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	inv, err := env.manager.Create(ctx, inventory.CreateRequest{})
	require.NoError(t, err)
	item, err := env.manager.Place(ctx, inv.ID, inventory.PlaceRequest{ShapeID: "pebble"})
	require.NoError(t, err)

	release := &queuePkg.Request{RequestID: "r1", Type: queuePkg.RequestTypeRelease, InventoryID: inv.ID, ItemID: item.ID}
	require.NoError(t, env.queue.Enqueue(ctx, release))
	require.NoError(t, env.worker.processNextRequest())

	v, err := env.manager.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, v.Items)

	// releasing again is rejected, not an error
	require.NoError(t, env.queue.Enqueue(ctx, release))
	require.NoError(t, env.worker.processNextRequest())
	failed, err := env.queue.Failed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "r1", failed[0].Request.RequestID)
}

func TestWorker_RejectedRequests(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()
	inv, err := env.manager.Create(ctx, inventory.CreateRequest{})
	require.NoError(t, err)

	reqs := []*queuePkg.Request{
		queuePkg.NewDelivery(uuid.New(), "pebble", nil),
		queuePkg.NewDelivery(inv.ID, "missing_shape", nil),
		queuePkg.NewDelivery(inv.ID, "", nil),
		{RequestID: "odd", Type: "teleport", InventoryID: inv.ID},
	}
	for _, req := range reqs {
		require.NoError(t, env.queue.Enqueue(ctx, req))
		require.NoError(t, env.worker.processNextRequest())
	}

	failed, err := env.queue.Failed(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, failed, len(reqs))
	assert.Equal(t, "unknown request type: teleport", failed[3].Reason)
	assert.Len(t, env.failureTypes(t, inv.ID), 3)
}

func TestWorker_LockedInventoryIsRequeued(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()
	inv, err := env.manager.Create(ctx, inventory.CreateRequest{})
	require.NoError(t, err)

	require.NoError(t, env.mr.Set(lockKey(inv.ID), "other-worker"))
	require.NoError(t, env.queue.Enqueue(ctx, queuePkg.NewDelivery(inv.ID, "pebble", nil)))
	require.NoError(t, env.worker.processNextRequest())

	req, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, 1, req.Attempts)

	v, err := env.manager.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, v.Items)

	// past the attempt limit the request is dropped as failed
	req.Attempts = maxAttempts
	require.NoError(t, env.queue.Enqueue(ctx, req))
	require.NoError(t, env.worker.processNextRequest())
	depth, err := env.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
	failed, err := env.queue.Failed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	got, err := env.mr.Get(lockKey(inv.ID))
	require.NoError(t, err)
	assert.Equal(t, "other-worker", got, "a foreign lock is left alone")
}

func TestWorker_StartStop(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()
	inv, err := env.manager.Create(ctx, inventory.CreateRequest{})
	require.NoError(t, err)
	require.NoError(t, env.queue.Enqueue(ctx, queuePkg.NewDelivery(inv.ID, "pebble", nil)))

	done := make(chan error, 1)
	go func() { done <- env.worker.Start() }()

	assert.Eventually(t, func() bool {
		depth, err := env.queue.Depth(ctx)
		return err == nil && depth == 0
	}, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		v, err := env.manager.Get(ctx, inv.ID)
		return err == nil && len(v.Items) == 1
	}, 3*time.Second, 20*time.Millisecond)

	env.worker.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_OversizedInlineShape(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()
	inv, err := env.manager.Create(ctx, inventory.CreateRequest{})
	require.NoError(t, err)

	// a queued payload with an area that overflows int is refused at decode
	raw := `{"request_id":"huge","type":"deliver","inventory_id":"` + inv.ID.String() +
		`","inline_shape":{"width":4294967296,"height":4294967296,"cells":[]}}`
	_, err = env.mr.Push("inventory-requests", raw)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, env.worker.processNextRequest(), shape.ErrInvalidMask)
	})
	depth, err := env.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)

	// built in-process the same mask clamps to an empty shape and is rejected
	req := queuePkg.NewDelivery(inv.ID, "", nil)
	req.Shape = &shape.Mask{Width: math.MaxInt, Height: math.MaxInt}
	assert.NotPanics(t, func() {
		require.NoError(t, env.worker.processRequest(req))
	})
	failed, err := env.queue.Failed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Reason, "no occupied cells")

	v, err := env.manager.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

type panickingService struct{}

func (panickingService) Place(context.Context, uuid.UUID, inventory.PlaceRequest) (*inventory.ItemView, error) {
	panic("index out of range")
}

func (panickingService) Release(context.Context, uuid.UUID, uuid.UUID) ([]int, error) {
	panic("index out of range")
}

func TestWorker_PanicFailsRequest(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()
	env.worker.service = panickingService{}
	id := uuid.New()

	require.NoError(t, env.queue.Enqueue(ctx, queuePkg.NewDelivery(id, "pebble", nil)))
	var err error
	assert.NotPanics(t, func() { err = env.worker.processNextRequest() })
	assert.ErrorContains(t, err, "panic processing request")

	failed, ferr := env.queue.Failed(ctx, 0)
	require.NoError(t, ferr)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Reason, "index out of range")
	assert.False(t, env.mr.Exists(lockKey(id)), "lock is released after a panic")
}

func TestRejected(t *testing.T) {
	assert.True(t, rejected(inventory.ErrItemNotFound))
	assert.True(t, rejected(errors.Join(errors.New("wrapped"), storage.ErrShapeNotFound)))
	assert.False(t, rejected(errors.New("connection refused")))
}
