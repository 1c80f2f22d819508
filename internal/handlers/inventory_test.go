package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/inventory-engine/internal/inventory"
	"github.com/jwebster45206/inventory-engine/pkg/queue"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
	"github.com/jwebster45206/inventory-engine/pkg/storage"
)

func setupInventoryHandler(t *testing.T) (*InventoryHandler, *storage.MockStorage) {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddShape("rusted_sword", shape.MustParse("#", "#", "#"))
	store.AddShape("fine_axe", shape.MustParse("##", "#."))
	mgr := inventory.NewManager(store, nil, testLogger(), 6, 4)
	return NewInventoryHandler(mgr, testLogger()), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func createInventory(t *testing.T, h http.Handler, body string) inventory.View {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/inventory", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[inventory.View](t, rr)
}

func TestInventoryHandler_Create(t *testing.T) {
	h, _ := setupInventoryHandler(t)

	v := createInventory(t, h, `{"width":3,"height":2}`)
	assert.Equal(t, 3, v.Width)
	assert.Len(t, v.Free, 6)
	assert.Len(t, v.Visual, 6)

	v = createInventory(t, h, "")
	assert.Equal(t, 6, v.Width, "empty body uses defaults")

	rr := do(t, h, http.MethodPost, "/v1/inventory", `{"width":-2}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/inventory", `{"width":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/inventory", `{"colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown fields are rejected")

	rr = do(t, h, http.MethodGet, "/v1/inventory", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST", rr.Header().Get("Allow"))
}

func TestInventoryHandler_PlaceCheckRelease(t *testing.T) {
	h, _ := setupInventoryHandler(t)
	v := createInventory(t, h, `{"width":4,"height":3}`)
	base := "/v1/inventory/" + v.ID.String()

	rr := do(t, h, http.MethodPost, base+"/items", `{"shape":"rusted_sword","anchor":{"x":0,"y":1},"origin":{"x":0,"y":1},"payload":{"durability":40}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sword := decodeBody[inventory.ItemView](t, rr)
	assert.Equal(t, []int{0, 4, 8}, sword.Indices)
	assert.JSONEq(t, `{"durability":40}`, string(sword.Payload))

	rr = do(t, h, http.MethodPost, base+"/check", `{"shape":"fine_axe","origin":{"x":0,"y":0}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeBody[inventory.CheckResult](t, rr)
	assert.False(t, res.Fits)

	rr = do(t, h, http.MethodPost, base+"/check", `{"shape":"fine_axe","origin":{"x":1,"y":0}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	res = decodeBody[inventory.CheckResult](t, rr)
	assert.True(t, res.Fits)
	assert.Equal(t, []int{1, 2, 5}, res.Indices)

	rr = do(t, h, http.MethodPost, base+"/items", `{"shape":"fine_axe","origin":{"x":0,"y":0}}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, base+"/items", `{"shape":"fine_axe"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	axe := decodeBody[inventory.ItemView](t, rr)
	assert.Equal(t, shape.Point{X: 1, Y: 0}, axe.Origin)

	rr = do(t, h, http.MethodPost, base+"/items", `{"inline_shape":{"pattern":["##"]},"origin":{"x":2,"y":2}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, base+"/items", `{"shape":"unknown"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, base+"/items", `{"inline_shape":{"pattern":[".."]}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "an item must occupy a cell")

	rr = do(t, h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[inventory.View](t, rr)
	assert.Len(t, got.Items, 3)
	assert.Equal(t, 4, got.FreeCount)

	rr = do(t, h, http.MethodDelete, base+"/items/"+sword.ID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	rel := decodeBody[ReleaseResponse](t, rr)
	assert.Equal(t, sword.ID, rel.ItemID)
	assert.ElementsMatch(t, []int{0, 4, 8}, rel.Indices)

	rr = do(t, h, http.MethodDelete, base+"/items/"+sword.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, base+"/items/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInventoryHandler_ReadDelete(t *testing.T) {
	h, store := setupInventoryHandler(t)
	v := createInventory(t, h, `{"width":2,"height":2}`)
	base := "/v1/inventory/" + v.ID.String()

	rr := do(t, h, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	snap, err := store.LoadSnapshot(t.Context(), v.ID)
	require.NoError(t, err)
	assert.Nil(t, snap)

	rr = do(t, h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Inventory not found", decodeBody[ErrorResponse](t, rr).Error)
}

func TestInventoryHandler_BadRoutes(t *testing.T) {
	h, _ := setupInventoryHandler(t)
	id := uuid.NewString()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/v1/inventory/not-a-uuid", http.StatusBadRequest},
		{http.MethodPut, "/v1/inventory/" + id, http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/inventory/" + id + "/items", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/inventory/" + id + "/check", http.StatusMethodNotAllowed},
		{http.MethodPost, "/v1/inventory/" + id + "/items/" + id, http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/inventory/" + id + "/unknown", http.StatusNotFound},
		{http.MethodGet, "/v1/inventory/" + id, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, "")
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

type recordingQueue struct {
	reqs []*queue.Request
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func TestInventoryHandler_Deliveries(t *testing.T) {
	h, _ := setupInventoryHandler(t)
	v := createInventory(t, h, `{"width":4,"height":3}`)
	path := "/v1/inventory/" + v.ID.String() + "/deliveries"

	rr := do(t, h, http.MethodPost, path, `{"shape":"pebble"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "queue not configured")

	q := &recordingQueue{}
	h.WithQueue(q)

	rr = do(t, h, http.MethodPost, path, `{"shape":"rusted_sword","payload":{"durability":7}}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	ack := decodeBody[DeliveryResponse](t, rr)
	require.Len(t, q.reqs, 1)
	assert.Equal(t, ack.RequestID, q.reqs[0].RequestID)
	assert.Equal(t, queue.RequestTypeDeliver, q.reqs[0].Type)
	assert.Equal(t, v.ID, q.reqs[0].InventoryID)
	assert.Equal(t, "rusted_sword", q.reqs[0].ShapeID)
	assert.JSONEq(t, `{"durability":7}`, string(q.reqs[0].Payload))

	rr = do(t, h, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/inventory/"+uuid.NewString()+"/deliveries", `{"shape":"pebble"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, h, http.MethodPost, path, `{"inline_shape":{"width":4294967296,"height":4294967296,"cells":[]}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "oversized shapes never reach the queue")
	rr = do(t, h, http.MethodPost, path, `{"inline_shape":{"pattern":["."]}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, q.reqs, 1)

	q.err = errors.New("redis down")
	rr = do(t, h, http.MethodPost, path, `{"shape":"pebble"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Len(t, q.reqs, 1)
}

func TestShapesHandler(t *testing.T) {
	store := storage.NewMockStorage()
	store.AddShape("rusted_sword", shape.MustParse("#", "#", "#"))
	store.AddShape("l_tromino", shape.MustParse("#.", "##"))
	h := NewShapesHandler(testLogger(), store)

	rr := do(t, h, http.MethodGet, "/v1/shapes", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeBody[[]ShapeSummary](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, ShapeSummary{ID: "l_tromino", Name: "L Tromino", Width: 2, Height: 2, Cells: 3}, list[0])
	assert.Equal(t, "Rusted Sword", list[1].Name)

	rr = do(t, h, http.MethodGet, "/v1/shapes/l_tromino", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var m shape.Mask
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	assert.Equal(t, []string{"#.", "##"}, m.Pattern())

	rr = do(t, h, http.MethodGet, "/v1/shapes/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/shapes/../etc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/shapes", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
