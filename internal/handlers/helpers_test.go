package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/config"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/store"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

var t0 = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type testAPI struct {
	store     *store.MemoryStore
	table     *thresholds.Table
	projector *services.AlertProjector
	ingestor  *services.Ingestor
	handler   http.Handler
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := discard()

	table, err := thresholds.NewTable(models.DefaultBounds())
	require.NoError(t, err)
	s := store.NewMemoryStore(store.Retention{})
	projector := services.NewAlertProjector(table, logger)
	ingestor := services.NewIngestor(s, table, projector, logger)
	query := services.NewQueryService(s, table, logger)
	generator := services.NewGenerator(ingestor, services.GeneratorOptions{Seed: 1}, logger)

	cfg := &config.Config{
		Store:     config.StoreConfig{Capacity: 100},
		Simulator: config.SimulatorConfig{Enabled: true, Tick: 5 * time.Second, Jitter: 0.1},
	}

	return &testAPI{
		store:     s,
		table:     table,
		projector: projector,
		ingestor:  ingestor,
		handler: NewRouter(Handlers{
			Readings:   NewReadingsHandler(ingestor, query, s, logger),
			Upload:     NewUploadHandler(services.NewUploadService(ingestor)),
			Load:       NewLoadHandler(services.NewLoader(ingestor, logger), t.TempDir()),
			Zones:      NewZonesHandler(services.NewZonesService(query)),
			Alerts:     NewAlertsHandler(projector, ingestor),
			Thresholds: NewThresholdsHandler(table, logger),
			Generator:  NewGeneratorHandler(generator, 6, logger),
			Config:     NewConfigHandler(cfg, table),
		}),
	}
}

func (a *testAPI) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(t *testing.T, target, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) seed(t *testing.T, readings ...models.Reading) {
	t.Helper()
	_, err := a.ingestor.IngestBatch(context.Background(), readings)
	require.NoError(t, err)
}

func sample(minute int, temp, hum, moist float64, zone string) models.Reading {
	return models.Reading{
		Timestamp:   t0.Add(time.Duration(minute) * time.Minute),
		Temperature: temp,
		Humidity:    hum,
		Moisture:    moist,
		Zone:        zone,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
