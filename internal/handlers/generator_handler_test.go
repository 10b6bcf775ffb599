package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

func streamEvents(t *testing.T, rec *httptest.ResponseRecorder) []streamEvent {
	t.Helper()
	var events []streamEvent
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		var ev streamEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), sc.Text())
		events = append(events, ev)
	}
	return events
}

func TestGenerateStreamsProgress(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	events := streamEvents(t, rec)
	require.Equal(t, []streamEvent{
		{Event: "progress", Count: 3, Total: 6},
		{Event: "progress", Count: 6, Total: 6},
		{Event: "done", Count: 6, Total: 6},
	}, events)
	assert.Equal(t, 6, api.store.Len())

	latest, ok := api.store.Latest()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), latest.Timestamp, time.Minute)
}

func TestGenerateWithRequest(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/generate",
		`{"count": 4, "interval": "PT15M", "start": "2024-03-10T08:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	events := streamEvents(t, rec)
	assert.Equal(t, streamEvent{Event: "done", Count: 4, Total: 4}, events[len(events)-1])

	latest, ok := api.store.Latest()
	require.True(t, ok)
	assert.Equal(t, t0.Add(45*time.Minute), latest.Timestamp)

	rec = api.do(t, http.MethodPost, "/api/generate", `{"frequency": "1hour", "count": 2, "start": "2024-03-11T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	latest, _ = api.store.Latest()
	assert.Equal(t, time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC), latest.Timestamp)
}

func TestGenerateRejectsBadRequest(t *testing.T) {
	api := newTestAPI(t)
	for _, body := range []string{
		`{"interval": "often"}`,
		`{"interval": "-5s"}`,
		`{"start": "tomorrow"}`,
		`{"count": 1000000}`,
	} {
		rec := api.do(t, http.MethodPost, "/api/generate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, api.store.Len())
}

func TestZones(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t,
		sample(0, 22, 50, 13, "Zone B"),
		sample(1, 22, 50, 13, "zone a"),
		sample(2, 29, 50, 13, "Zone A"),
		sample(3, 22, 50, 13, "Silo 7"),
	)

	rec := api.do(t, http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ZonesListResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "Silo 7", resp.Items[0].Zone)
	assert.Equal(t, "zone a", resp.Items[1].Zone)
	assert.Equal(t, 2, resp.Items[1].Readings)
	assert.Equal(t, "critical", string(resp.Items[1].Status))

	rec = api.do(t, http.MethodGet, "/api/zones?page=2&limit=2", nil)
	resp = decode[ZonesListResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Zone B", resp.Items[0].Zone)

	rec = api.do(t, http.MethodGet, "/api/zones?page=1024819115206086202", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ZonesListResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	assert.Empty(t, resp.Items)

	rec = api.do(t, http.MethodGet, "/api/zones?search=ZONE", nil)
	assert.Equal(t, 2, decode[ZonesListResponse](t, rec).Total)

	rec = api.do(t, http.MethodGet, "/api/zones/names", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Silo 7", "zone a", "Zone B"}, decode[ZonesNamesResponse](t, rec).Zones)
}

func TestLoadFolder(t *testing.T) {
	logger := discard()
	api := newTestAPI(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"readings": [
		{"timestamp": "2024-03-10T08:00:00Z", "temperature": 22, "humidity": 50, "moisture": 13, "zone": "Zone A"},
		{"timestamp": "2024-03-10T08:01:00Z", "temperature": 23, "humidity": 51, "moisture": 13, "zone": "Zone B"}
	]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	handler := NewRouter(Handlers{Load: NewLoadHandler(services.NewLoader(api.ingestor, logger), dir)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/load", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[LoadResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 1, resp.FilesCount)
	assert.Equal(t, 2, api.store.Len())

	missing := NewRouter(Handlers{Load: NewLoadHandler(services.NewLoader(api.ingestor, logger), filepath.Join(dir, "absent"))})
	rec = httptest.NewRecorder()
	missing.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/load", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decode[LoadResponse](t, rec).Success)
}

func TestConfigEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ConfigResponse](t, rec)
	assert.Equal(t, 100, resp.Store.Capacity)
	assert.Empty(t, resp.Store.Retention)
	assert.True(t, resp.Simulator.Enabled)
	assert.Equal(t, "PT5S", resp.Simulator.Interval)
	assert.Len(t, resp.Thresholds, 3)
	assert.Len(t, resp.Metrics, 3)
}

func TestHealthAndCORS(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = api.do(t, http.MethodOptions, "/api/thresholds/temperature", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")

	rec = api.do(t, http.MethodDelete, "/api/readings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decode[map[string]string](t, rec)["error"])

	rec = api.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
