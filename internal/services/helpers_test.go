package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/store"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

var t0 = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type pipeline struct {
	store     *store.MemoryStore
	table     *thresholds.Table
	projector *AlertProjector
	ingestor  *Ingestor
	query     *QueryService
	events    *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Consume(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, retention store.Retention) *pipeline {
	t.Helper()
	table, err := thresholds.NewTable(models.DefaultBounds())
	require.NoError(t, err)

	logger := discardLogger()
	s := store.NewMemoryStore(retention)
	projector := NewAlertProjector(table, logger)
	events := &eventLog{}
	ingestor := NewIngestor(s, table, projector, logger, events)

	return &pipeline{
		store:     s,
		table:     table,
		projector: projector,
		ingestor:  ingestor,
		query:     NewQueryService(s, table, logger),
		events:    events,
	}
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

func (p *pipeline) ingest(t *testing.T, readings ...models.Reading) []Result {
	t.Helper()
	results, err := p.ingestor.IngestBatch(context.Background(), readings)
	require.NoError(t, err)
	return results
}

func ptr(v float64) *float64 { return &v }
