package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/tradelog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, store.Stores) {
	t.Helper()
	metrics := obs.NewMetrics()
	notifier := notify.NewNotifier(64)
	t.Cleanup(notifier.Close)

	stores := store.NewMemory()
	eng := engine.New(engine.Config{
		Positions: stores.Positions,
		TradeLog:  tradelog.NewWriter(stores.TradeLogs, notifier, metrics),
		Notifier:  notifier,
		Metrics:   metrics,
	})

	server := NewServer(Config{
		Ingestor: ingest.NewIngestor("test-secret", stores.Alerts, notifier, metrics, nil),
		Engine:   eng,
		Hub:      notify.NewHub(),
		Metrics:  metrics,
	})
	return server, stores
}

func doJSON(server *Server, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestAlertEndpointOpensPosition(t *testing.T) {
	server, stores := newTestServer(t)

	rec := doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":2,"order_type":"market","price":5000,"stop_loss":4980,"take_profit":[5020,5040,5060],"nonce":"w1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string                 `json:"status"`
		AlertID  string                 `json:"alert_id"`
		Position *schema.PositionRecord `json:"position"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "executed", resp.Status)
	require.NotNil(t, resp.Position)
	assert.Equal(t, schema.PositionStateActive, resp.Position.State)

	alert, err := stores.Alerts.FindByDedupKey(t.Context(), mustDedupKey(t, stores))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, schema.AlertStatusExecuted, alert.Status)
}

func mustDedupKey(t *testing.T, stores store.Stores) string {
	t.Helper()
	// The memory store is keyed by dedup key; fetch through the single
	// stored alert.
	mem, ok := stores.Alerts.(*store.MemoryAlertStore)
	require.True(t, ok)
	keys := mem.DedupKeys()
	require.Len(t, keys, 1)
	return keys[0]
}

func TestAlertEndpointDuplicate(t *testing.T) {
	server, _ := newTestServer(t)
	payload := `{"symbol":"ES","action":"buy","quantity":1,"price":5000,"take_profit":5020,"nonce":"d1"}`

	rec := doJSON(server, http.MethodPost, "/webhook/alert", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodPost, "/webhook/alert", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")
}

func TestAlertEndpointValidation(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodPost, "/webhook/alert", `{"action":"buy","quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(server, http.MethodPost, "/webhook/alert", ``)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertEndpointConflict(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":1,"price":5000,"nonce":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":1,"price":5005,"nonce":"c2"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAlertEndpointCloseWithoutPosition(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"close","quantity":1,"nonce":"x1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTickEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":2,"price":5000,"stop_loss":4980,"take_profit":[5020,5040],"nonce":"t1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodPost, "/tick", `{"symbol":"ES","price":5021}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string                 `json:"status"`
		Position *schema.PositionRecord `json:"position"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "applied", resp.Status)
	require.NotNil(t, resp.Position)
	assert.Equal(t, schema.PositionStateTP1Hit, resp.Position.State)

	// A tick for an unknown symbol is acknowledged as a no-op.
	rec = doJSON(server, http.MethodPost, "/tick", `{"symbol":"NQ","price":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "noop")

	rec = doJSON(server, http.MethodPost, "/tick", `{"symbol":"ES"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPositionEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodGet, "/positions/ES", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":1,"price":5000,"nonce":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodGet, "/positions/ES", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodGet, "/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ES"`)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":1,"price":5000,"nonce":"m1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap obs.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, uint64(1), snap.AlertsAccepted)
	assert.Equal(t, uint64(1), snap.PositionsOpened)
}

func TestMoveStopEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(server, http.MethodPost, "/positions/ES/stop", `{"stop":4990}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(server, http.MethodPost, "/webhook/alert",
		`{"symbol":"ES","action":"buy","quantity":1,"order_type":"market","price":5000,"stop_loss":4980,"take_profit":[5040],"nonce":"m1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(server, http.MethodPost, "/positions/ES/stop", `{"stop":4990}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string                 `json:"status"`
		Position *schema.PositionRecord `json:"position"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "applied", resp.Status)
	require.NotNil(t, resp.Position)
	assert.Equal(t, 4990.0, resp.Position.CurrentStop)

	// Loosening the stop is a ratchet violation.
	rec = doJSON(server, http.MethodPost, "/positions/ES/stop", `{"stop":4985}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(server, http.MethodPost, "/positions/ES/stop", `{"stop":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
