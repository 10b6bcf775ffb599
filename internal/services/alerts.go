package services

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// ErrAlertNotFound is returned for an alert ID the projector does not hold
var ErrAlertNotFound = errors.New("alert not found")

var recommendations = map[models.Metric][]string{
	models.Temperature: {
		"Check ventilation system",
		"Verify cooling system operation",
		"Inspect for heat sources",
		"Adjust cooling parameters",
		"Monitor adjacent zones",
	},
	models.Humidity: {
		"Activate dehumidification system",
		"Check for water leaks",
		"Ensure proper air circulation",
		"Monitor weather conditions",
		"Inspect roof seals",
	},
	models.Moisture: {
		"Check aeration system",
		"Check for water infiltration",
		"Verify moisture sensor calibration",
		"Monitor grain temperature",
		"Consider grain rotation if levels persist",
	},
}

// AlertFilter selects alerts by exact state, severity, metric and zone, plus a
// case-insensitive text match over message and zone. Empty fields match anything.
type AlertFilter struct {
	State    models.AlertState
	Severity models.Status
	Metric   models.Metric
	Zone     string
	Text     string
}

func (f AlertFilter) matches(a *models.Alert) bool {
	if f.State != "" && a.State != f.State {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Metric != "" && a.Metric != f.Metric {
		return false
	}
	if f.Zone != "" && NormalizeZone(a.Zone) != NormalizeZone(f.Zone) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(strings.TrimSpace(f.Text))
		if !strings.Contains(strings.ToLower(a.Message), needle) && !strings.Contains(NormalizeZone(a.Zone), needle) {
			return false
		}
	}
	return true
}

// AlertStats are the counters shown above the alert list
type AlertStats struct {
	Total        int `json:"total"`
	Critical     int `json:"critical"`
	Warning      int `json:"warning"`
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
}

type openKey struct {
	metric models.Metric
	zone   string
}

// AlertProjector derives alerts from classified readings and tracks their lifecycle.
// At most one open alert exists per (metric, zone). Alerts outlive the readings that
// raised them.
type AlertProjector struct {
	mu         sync.RWMutex
	alerts     map[string]*models.Alert
	order      []string // insertion order, oldest first
	open       map[openKey]string
	table      BoundsSource
	onResolved func(models.Alert)
	newID      func() string
	now        func() time.Time
	logger     *slog.Logger
}

// NewAlertProjector creates a new AlertProjector instance
func NewAlertProjector(table BoundsSource, logger *slog.Logger) *AlertProjector {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertProjector{
		alerts: make(map[string]*models.Alert),
		open:   make(map[openKey]string),
		table:  table,
		newID:  uuid.NewString,
		now:    time.Now,
		logger: logger.With("component", "alerts"),
	}
}

// OnResolved registers a callback invoked after an open alert is resolved
func (p *AlertProjector) OnResolved(fn func(models.Alert)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResolved = fn
}

// Project turns one classified reading into alerts using the current table.
// It returns alerts that were opened or escalated.
func (p *AlertProjector) Project(cr models.ClassifiedReading) []models.Alert {
	return p.ProjectWith(cr, p.table.Snapshot())
}

// ProjectWith is Project against a caller-supplied table snapshot, normally the one
// the reading was classified with.
func (p *AlertProjector) ProjectWith(cr models.ClassifiedReading, bounds map[models.Metric]models.Bounds) []models.Alert {
	var raised, resolved []models.Alert

	p.mu.Lock()
	for _, m := range models.Metrics {
		status := cr.StatusOf(m)
		key := openKey{metric: m, zone: NormalizeZone(cr.Zone)}
		current := p.openAlert(key)

		switch {
		case status == models.StatusNormal:
			if current == nil {
				continue
			}
			at := cr.Timestamp
			current.State = models.AlertResolved
			current.ResolvedAt = &at
			delete(p.open, key)
			resolved = append(resolved, cloneAlert(current))

		case current == nil:
			a := p.newAlert(cr, m, status, bounds[m])
			p.alerts[a.ID] = a
			p.order = append(p.order, a.ID)
			p.open[key] = a.ID
			raised = append(raised, cloneAlert(a))

		case status.Severity() > current.Severity.Severity():
			value := cr.Value(m)
			current.Severity = status
			current.Value = value
			current.Threshold = bounds[m].Limit(value, status)
			current.Message = alertMessage(m, value, status, bounds[m])
			current.ReadingID = cr.ID
			// an escalation needs a fresh acknowledgement
			current.State = models.AlertActive
			current.Acknowledged = false
			current.AcknowledgedAt = nil
			raised = append(raised, cloneAlert(current))
		}
	}
	hook := p.onResolved
	p.mu.Unlock()

	for _, a := range raised {
		p.logger.Info("alert raised", "id", a.ID, "metric", a.Metric, "zone", a.Zone, "severity", a.Severity, "value", a.Value)
	}
	for _, a := range resolved {
		p.logger.Info("alert resolved", "id", a.ID, "metric", a.Metric, "zone", a.Zone)
		if hook != nil {
			hook(a)
		}
	}
	return raised
}

// openAlert returns the open alert for key. Caller holds the lock.
func (p *AlertProjector) openAlert(key openKey) *models.Alert {
	id, ok := p.open[key]
	if !ok {
		return nil
	}
	return p.alerts[id]
}

func (p *AlertProjector) newAlert(cr models.ClassifiedReading, m models.Metric, status models.Status, b models.Bounds) *models.Alert {
	value := cr.Value(m)
	return &models.Alert{
		ID:              p.newID(),
		ReadingID:       cr.ID,
		Metric:          m,
		Zone:            cr.Zone,
		Severity:        status,
		Value:           value,
		Threshold:       b.Limit(value, status),
		Message:         alertMessage(m, value, status, b),
		Recommendations: slices.Clone(recommendations[m]),
		State:           models.AlertActive,
		CreatedAt:       cr.Timestamp,
	}
}

// alertMessage words an alert the way operators see it, e.g.
// "Temperature exceeded critical threshold" or "Humidity below warning threshold".
func alertMessage(m models.Metric, value float64, status models.Status, b models.Bounds) string {
	direction := "exceeded"
	if value < b.Limit(value, status) {
		direction = "below"
	}
	return fmt.Sprintf("%s %s %s threshold", m.Label(), direction, status)
}

// Acknowledge marks an active alert acknowledged. Acknowledging an acknowledged or
// resolved alert changes nothing.
func (p *AlertProjector) Acknowledge(id string) (models.Alert, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	if a.State == models.AlertActive {
		at := p.now().UTC()
		a.State = models.AlertAcknowledged
		a.Acknowledged = true
		a.AcknowledgedAt = &at
	}
	return cloneAlert(a), nil
}

// Get returns an alert by ID
func (p *AlertProjector) Get(id string) (models.Alert, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return cloneAlert(a), nil
}

// List returns the alerts matching f, newest first
func (p *AlertProjector) List(f AlertFilter) []models.Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.Alert, 0)
	for i := len(p.order) - 1; i >= 0; i-- {
		a := p.alerts[p.order[i]]
		if f.matches(a) {
			out = append(out, cloneAlert(a))
		}
	}
	return out
}

// Stats counts alerts by severity and state
func (p *AlertProjector) Stats() AlertStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var s AlertStats
	for _, a := range p.alerts {
		s.Total++
		switch a.Severity {
		case models.StatusCritical:
			s.Critical++
		case models.StatusWarning:
			s.Warning++
		}
		switch a.State {
		case models.AlertActive:
			s.Active++
		case models.AlertAcknowledged:
			s.Acknowledged++
		case models.AlertResolved:
			s.Resolved++
		}
	}
	return s
}

// Restore replaces the alert log with previously persisted alerts
func (p *AlertProjector) Restore(alerts []models.Alert) {
	sorted := slices.Clone(alerts)
	slices.SortStableFunc(sorted, func(a, b models.Alert) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	p.alerts = make(map[string]*models.Alert, len(sorted))
	p.order = make([]string, 0, len(sorted))
	p.open = make(map[openKey]string)
	for i := range sorted {
		a := cloneAlert(&sorted[i])
		p.alerts[a.ID] = &a
		p.order = append(p.order, a.ID)
		if a.State.Open() {
			p.open[openKey{metric: a.Metric, zone: NormalizeZone(a.Zone)}] = a.ID
		}
	}
	p.logger.Info("alerts restored", "count", len(sorted), "open", len(p.open))
}

// OpenCount returns the number of active or acknowledged alerts
func (p *AlertProjector) OpenCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.open)
}

func cloneAlert(a *models.Alert) models.Alert {
	c := *a
	c.Recommendations = slices.Clone(a.Recommendations)
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}
