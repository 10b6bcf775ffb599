package thresholds

import (
	"fmt"
	"maps"
	"sync"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// ChangeFunc observes a committed bounds update. Returning an error rolls
// the update back.
type ChangeFunc func(metric models.Metric, b models.Bounds) error

// Table holds the per-metric bounds used to classify readings
type Table struct {
	mu       sync.RWMutex
	bounds   map[models.Metric]models.Bounds
	onChange ChangeFunc
}

// NewTable creates a table from the given bounds, validating every entry
func NewTable(initial map[models.Metric]models.Bounds) (*Table, error) {
	bounds := make(map[models.Metric]models.Bounds, len(initial))
	for m, b := range initial {
		if err := b.Validate(); err != nil {
			return nil, &InvalidBoundsError{Metric: m, Bounds: b, Reason: err}
		}
		bounds[m] = b
	}
	return &Table{bounds: bounds}, nil
}

// OnChange registers an observer called while the write lock is held
func (t *Table) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Get returns the bounds for a metric
func (t *Table) Get(metric models.Metric) (models.Bounds, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.bounds[metric]
	if !ok {
		return models.Bounds{}, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	return b, nil
}

// Set replaces the bounds for a metric. On any error the table is unchanged.
func (t *Table) Set(metric models.Metric, b models.Bounds) error {
	if err := b.Validate(); err != nil {
		return &InvalidBoundsError{Metric: metric, Bounds: b, Reason: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.bounds[metric]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	prev := t.bounds[metric]
	t.bounds[metric] = b

	if t.onChange != nil {
		if err := t.onChange(metric, b); err != nil {
			t.bounds[metric] = prev
			return fmt.Errorf("failed to persist bounds for %s: %w", metric, err)
		}
	}
	return nil
}

// Snapshot returns a copy of the whole table
func (t *Table) Snapshot() map[models.Metric]models.Bounds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.bounds)
}

// Classify classifies a value for a metric against the current bounds
func (t *Table) Classify(metric models.Metric, value float64) (models.Status, error) {
	b, err := t.Get(metric)
	if err != nil {
		return "", err
	}
	return Classify(value, b), nil
}
