package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

// ErrMissingZone is returned for a reading without a zone label
var ErrMissingZone = errors.New("reading has no zone")

// ReadingStore is the full reading store used by the ingestion path
type ReadingStore interface {
	ReadingSource
	Append(models.Reading) error
}

// EventKind tells sinks what happened
type EventKind string

const (
	EventReading  EventKind = "reading"  // a reading was accepted
	EventRejected EventKind = "rejected" // a reading was refused by the store
	EventAlerts   EventKind = "alerts"   // alerts changed outside of ingestion
)

// Event is what the ingestor hands to every sink
type Event struct {
	Kind    EventKind
	Reading models.ClassifiedReading
	Raised  []models.Alert // opened or escalated
	Updated []models.Alert // acknowledged or resolved
	Err     error
	Took    time.Duration
}

// Sink consumes ingestion events. A failing sink never undoes the store append.
type Sink interface {
	Consume(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Consume(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Result is the outcome of ingesting one reading
type Result struct {
	Reading models.ClassifiedReading `json:"reading"`
	Alerts  []models.Alert           `json:"alerts"`
}

// Ingestor is the single writer in front of the store and the alert projector.
// Concurrent producers are serialized so reading IDs stay strictly increasing.
type Ingestor struct {
	mu        sync.Mutex
	store     ReadingStore
	table     BoundsSource
	projector *AlertProjector
	sinks     []Sink
	resolved  []models.Alert
	logger    *slog.Logger
}

// NewIngestor creates a new Ingestor instance
func NewIngestor(store ReadingStore, table BoundsSource, projector *AlertProjector, logger *slog.Logger, sinks ...Sink) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	ing := &Ingestor{
		store:     store,
		table:     table,
		projector: projector,
		sinks:     sinks,
		logger:    logger.With("component", "ingest"),
	}
	// Project runs under ing.mu, so the buffer needs no extra locking.
	projector.OnResolved(func(a models.Alert) {
		ing.resolved = append(ing.resolved, a)
	})
	return ing
}

// AddSink registers another sink. Call before the first Ingest.
func (i *Ingestor) AddSink(s Sink) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sinks = append(i.sinks, s)
}

// Ingest appends a reading, classifies it, projects alerts and notifies sinks.
// A zero ID is replaced with the next ID after the latest stored reading.
func (i *Ingestor) Ingest(ctx context.Context, r models.Reading) (Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ingestLocked(ctx, r)
}

// IngestBatch ingests readings in order and stops at the first rejected one.
// Results of the readings accepted before the failure are returned with the error.
func (i *Ingestor) IngestBatch(ctx context.Context, readings []models.Reading) ([]Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	results := make([]Result, 0, len(readings))
	for idx, r := range readings {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := i.ingestLocked(ctx, r)
		if err != nil {
			return results, fmt.Errorf("reading %d of %d: %w", idx+1, len(readings), err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (i *Ingestor) ingestLocked(ctx context.Context, r models.Reading) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(r.Zone) == "" {
		i.logger.Warn("reading rejected", "id", r.ID, "error", ErrMissingZone)
		i.publish(ctx, Event{Kind: EventRejected, Reading: models.ClassifiedReading{Reading: r}, Err: ErrMissingZone})
		return Result{}, ErrMissingZone
	}
	if r.ID == 0 {
		r.ID = 1
		if latest, ok := i.store.Latest(); ok {
			r.ID = latest.ID + 1
		}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = start.UTC()
	}

	if err := i.store.Append(r); err != nil {
		i.logger.Warn("reading rejected", "id", r.ID, "error", err)
		i.publish(ctx, Event{Kind: EventRejected, Reading: models.ClassifiedReading{Reading: r}, Err: err})
		return Result{}, err
	}

	snapshot := i.table.Snapshot()
	cr := thresholds.ClassifyReading(r, snapshot)
	i.resolved = i.resolved[:0]
	raised := i.projector.ProjectWith(cr, snapshot)
	resolved := append([]models.Alert(nil), i.resolved...)

	i.publish(ctx, Event{
		Kind:    EventReading,
		Reading: cr,
		Raised:  raised,
		Updated: resolved,
		Took:    time.Since(start),
	})
	i.logger.Debug("reading ingested", "id", r.ID, "zone", r.Zone, "status", cr.Overall(), "alerts", len(raised))

	if raised == nil {
		raised = []models.Alert{}
	}
	return Result{Reading: cr, Alerts: raised}, nil
}

// Acknowledge acknowledges an alert and notifies sinks when its state changed
func (i *Ingestor) Acknowledge(ctx context.Context, id string) (models.Alert, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	before, err := i.projector.Get(id)
	if err != nil {
		return models.Alert{}, err
	}
	a, err := i.projector.Acknowledge(id)
	if err != nil {
		return models.Alert{}, err
	}
	if before.State != a.State {
		i.logger.Info("alert acknowledged", "id", a.ID, "metric", a.Metric, "zone", a.Zone)
		i.publish(ctx, Event{Kind: EventAlerts, Updated: []models.Alert{a}})
	}
	return a, nil
}

func (i *Ingestor) publish(ctx context.Context, ev Event) {
	var errs []error
	for _, s := range i.sinks {
		if err := s.Consume(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		i.logger.Error("sink failed", "kind", ev.Kind, "reading_id", ev.Reading.ID, "error", err)
	}
}
