package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/inventory-engine/internal/services/events"
)

// readEvent returns the next SSE event name and data line.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsHandler_Stream(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := events.NewBroadcaster(client, testLogger())
	id := uuid.New()
	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, events.NewEvent(events.EventTypeCreated, id)))

	srv := httptest.NewServer(NewEventsHandler(client, b, testLogger()))
	defer srv.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/v1/events/inventory/"+id.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, r)
	assert.Equal(t, "connected", name)

	name, data := readEvent(t, r)
	assert.Equal(t, string(events.EventTypeCreated), name, "history is replayed")
	assert.Contains(t, data, id.String())

	ev := events.NewEvent(events.EventTypeItemPlaced, id)
	ev.Indices = []int{3, 4}
	require.NoError(t, b.Publish(ctx, ev))

	name, data = readEvent(t, r)
	assert.Equal(t, string(events.EventTypeItemPlaced), name)
	assert.Contains(t, data, `"indices":[3,4]`)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	h := NewEventsHandler(nil, nil, testLogger())

	rr := do(t, h, http.MethodPost, "/v1/events/inventory/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/events/games/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/events/inventory/nope", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// raceHistory publishes an event while the handler is already subscribed and
// before it reads the history, so the event arrives both ways.
type raceHistory struct {
	b  *events.Broadcaster
	ev events.Event
}

func (h raceHistory) History(ctx context.Context, id uuid.UUID) ([]events.Event, error) {
	if err := h.b.Publish(ctx, h.ev); err != nil {
		return nil, err
	}
	return h.b.History(ctx, id)
}

func TestEventsHandler_ReplayedEventIsNotRepeated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := events.NewBroadcaster(client, testLogger())
	id := uuid.New()
	ctx := context.Background()
	placed := events.NewEvent(events.EventTypeItemPlaced, id)

	srv := httptest.NewServer(NewEventsHandler(client, raceHistory{b: b, ev: placed}, testLogger()))
	defer srv.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/v1/events/inventory/"+id.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, r)
	require.Equal(t, "connected", name)

	name, data := readEvent(t, r)
	assert.Equal(t, string(events.EventTypeItemPlaced), name)
	assert.Contains(t, data, placed.ID)

	released := events.NewEvent(events.EventTypeItemReleased, id)
	require.NoError(t, b.Publish(ctx, released))

	name, data = readEvent(t, r)
	assert.Equal(t, string(events.EventTypeItemReleased), name, "the live copy of a replayed event is dropped")
	assert.Contains(t, data, released.ID)
}
