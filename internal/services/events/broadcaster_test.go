package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBroadcaster_Publish(t *testing.T) {
	client, _ := setupTestRedis(t)
	b := NewBroadcaster(client, testLogger())
	ctx := context.Background()
	id := uuid.New()

	sub := client.Subscribe(ctx, Channel(id.String()))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev := NewEvent(EventTypeItemPlaced, id)
	ev.ItemID = uuid.NewString()
	ev.Indices = []int{0, 1}
	require.NoError(t, b.Publish(ctx, ev))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventTypeItemPlaced, got.Type)
		assert.Equal(t, id.String(), got.InventoryID)
		assert.Equal(t, []int{0, 1}, got.Indices)
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_EventIDs(t *testing.T) {
	client, _ := setupTestRedis(t)
	b := NewBroadcaster(client, testLogger())
	ctx := context.Background()
	id := uuid.New()

	first, second := NewEvent(EventTypeCreated, id), NewEvent(EventTypeCreated, id)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, b.Publish(ctx, first))
	require.NoError(t, b.Publish(ctx, Event{Type: EventTypeLoaded, InventoryID: id.String()}))

	hist, err := b.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, first.ID, hist[0].ID)
	assert.NotEmpty(t, hist[1].ID, "Publish fills in a missing ID")
}

func TestBroadcaster_History(t *testing.T) {
	client, _ := setupTestRedis(t)
	b := NewBroadcaster(client, testLogger())
	b.historyLen = 3
	ctx := context.Background()
	id := uuid.New()

	empty, err := b.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, empty)

	types := []EventType{EventTypeCreated, EventTypeItemPlaced, EventTypeItemPlaced, EventTypeItemReleased, EventTypeLoaded}
	for _, typ := range types {
		require.NoError(t, b.Publish(ctx, NewEvent(typ, id)))
	}

	hist, err := b.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, EventTypeItemPlaced, hist[0].Type)
	assert.Equal(t, EventTypeItemReleased, hist[1].Type)
	assert.Equal(t, EventTypeLoaded, hist[2].Type)

	require.NoError(t, b.ClearHistory(ctx, id))
	hist, err = b.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestBroadcaster_HistorySkipsMalformed(t *testing.T) {
	client, mr := setupTestRedis(t)
	b := NewBroadcaster(client, testLogger())
	id := uuid.New()

	_, err := mr.Push(historyKey(id.String()), "garbage")
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), NewEvent(EventTypeDeleted, id)))

	hist, err := b.History(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, EventTypeDeleted, hist[0].Type)
}
