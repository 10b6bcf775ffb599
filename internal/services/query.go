package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
)

// ErrEmptySelection is returned when an aggregate is requested over no readings
var ErrEmptySelection = errors.New("empty selection")

// ReadingSource is the read side of the reading store
type ReadingSource interface {
	Range(fromID, toID int64) iter.Seq[models.Reading]
	Between(from, to time.Time) iter.Seq[models.Reading]
	All() iter.Seq[models.Reading]
	Latest() (models.Reading, bool)
}

// BoundsSource supplies a consistent copy of the threshold table
type BoundsSource interface {
	Snapshot() map[models.Metric]models.Bounds
}

// Range is an inclusive numeric range. A nil side is open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies inside the range
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Filter is a conjunction of optional predicates over classified readings.
// The zero value matches every reading.
type Filter struct {
	Text    string
	Zone    string
	Status  map[models.Metric]models.Status
	Overall models.Status
	Ranges  map[models.Metric]Range
	From    time.Time
	To      time.Time
}

// NormalizeZone trims, lower-cases and collapses inner whitespace of a zone label
func NormalizeZone(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FormatValue renders a metric value the way logs and exports show it
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Matches reports whether a classified reading satisfies every predicate of the filter
func (f Filter) Matches(cr models.ClassifiedReading) bool {
	if !f.From.IsZero() && cr.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && cr.Timestamp.After(f.To) {
		return false
	}
	zone := NormalizeZone(cr.Zone)
	if f.Zone != "" && zone != NormalizeZone(f.Zone) {
		return false
	}
	for m, want := range f.Status {
		if cr.StatusOf(m) != want {
			return false
		}
	}
	if f.Overall != "" && cr.Overall() != f.Overall {
		return false
	}
	for m, r := range f.Ranges {
		if !r.Contains(cr.Value(m)) {
			return false
		}
	}
	if f.Text != "" && !matchesText(cr.Reading, zone, f.Text) {
		return false
	}
	return true
}

func matchesText(r models.Reading, zone, text string) bool {
	needle := NormalizeZone(text)
	if needle == "" {
		return true
	}
	if strings.Contains(zone, needle) {
		return true
	}
	for _, m := range models.Metrics {
		if strings.Contains(FormatValue(r.Value(m)), needle) {
			return true
		}
	}
	return false
}

// QueryService answers search and aggregate requests over the reading store
type QueryService struct {
	store  ReadingSource
	table  BoundsSource
	logger *slog.Logger
}

// NewQueryService creates a new QueryService instance
func NewQueryService(store ReadingSource, table BoundsSource, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{store: store, table: table, logger: logger.With("component", "query")}
}

// Search yields the classified readings matching the filter in ascending ID order.
// One table snapshot is taken per iteration, so a concurrent threshold update never
// splits a result set. Iteration stops early when ctx is done.
func (q *QueryService) Search(ctx context.Context, f Filter) iter.Seq[models.ClassifiedReading] {
	return func(yield func(models.ClassifiedReading) bool) {
		queryStartTime := time.Now()
		source := q.store.All()
		if !f.From.IsZero() || !f.To.IsZero() {
			source = q.store.Between(f.From, f.To)
		}

		snapshot := q.table.Snapshot()
		matched := 0
		defer func() {
			q.logger.Debug("search completed",
				"matched", matched, "took", time.Since(queryStartTime).Round(time.Microsecond))
		}()

		for r := range source {
			if ctx.Err() != nil {
				return
			}
			cr := thresholds.ClassifyReading(r, snapshot)
			if !f.Matches(cr) {
				continue
			}
			matched++
			if !yield(cr) {
				return
			}
		}
	}
}

// Classify yields each reading of seq classified against one snapshot of the table
func (q *QueryService) Classify(seq iter.Seq[models.Reading]) iter.Seq[models.ClassifiedReading] {
	return func(yield func(models.ClassifiedReading) bool) {
		snapshot := q.table.Snapshot()
		for r := range seq {
			if !yield(thresholds.ClassifyReading(r, snapshot)) {
				return
			}
		}
	}
}

// Latest returns the newest reading classified against the current table
func (q *QueryService) Latest() (models.ClassifiedReading, bool) {
	r, ok := q.store.Latest()
	if !ok {
		return models.ClassifiedReading{}, false
	}
	return thresholds.ClassifyReading(r, q.table.Snapshot()), true
}

// Stats summarizes the values of one metric over a selection
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Aggregate computes count, min, max, mean and median of a metric over seq
func Aggregate(seq iter.Seq[models.ClassifiedReading], metric models.Metric) (Stats, error) {
	var values []float64
	for cr := range seq {
		values = append(values, cr.Value(metric))
	}
	return statsOf(values, metric)
}

func statsOf(values []float64, metric models.Metric) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, fmt.Errorf("aggregate %s: %w", metric, ErrEmptySelection)
	}
	slices.Sort(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	n := len(values)
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return Stats{
		Count:  n,
		Min:    values[0],
		Max:    values[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}, nil
}

// Summary is the dashboard view of a selection: per-metric stats and status counts
type Summary struct {
	Count   int                                     `json:"count"`
	Metrics map[models.Metric]Stats                 `json:"metrics"`
	Overall map[models.Status]int                   `json:"overall"`
	Status  map[models.Metric]map[models.Status]int `json:"status"`
	Latest  *models.ClassifiedReading               `json:"latest,omitempty"`
}

// Summarize consumes seq once and builds its Summary
func Summarize(seq iter.Seq[models.ClassifiedReading]) (Summary, error) {
	values := make(map[models.Metric][]float64, len(models.Metrics))
	s := Summary{
		Metrics: make(map[models.Metric]Stats, len(models.Metrics)),
		Overall: map[models.Status]int{models.StatusNormal: 0, models.StatusWarning: 0, models.StatusCritical: 0},
		Status:  make(map[models.Metric]map[models.Status]int, len(models.Metrics)),
	}
	var latest models.ClassifiedReading
	for cr := range seq {
		s.Count++
		s.Overall[cr.Overall()]++
		for _, m := range models.Metrics {
			values[m] = append(values[m], cr.Value(m))
			if s.Status[m] == nil {
				s.Status[m] = make(map[models.Status]int, 3)
			}
			s.Status[m][cr.StatusOf(m)]++
		}
		latest = cr
	}
	if s.Count == 0 {
		return s, fmt.Errorf("summarize: %w", ErrEmptySelection)
	}
	for _, m := range models.Metrics {
		st, err := statsOf(values[m], m)
		if err != nil {
			return s, err
		}
		s.Metrics[m] = st
	}
	s.Latest = &latest
	return s, nil
}

// Zones returns the distinct zone labels of seq, sorted by normalized label.
// The first spelling seen for a label is the one returned.
func Zones(seq iter.Seq[models.Reading]) []string {
	seen := make(map[string]string)
	for r := range seq {
		key := NormalizeZone(r.Zone)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; !ok {
			seen[key] = strings.Join(strings.Fields(r.Zone), " ")
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

