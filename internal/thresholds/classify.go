package thresholds

import (
	"math"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// Classify maps a value onto normal, warning or critical.
// Comparisons are strict, so a value sitting exactly on a bound stays in the
// less severe bucket.
func Classify(value float64, b models.Bounds) models.Status {
	if math.IsNaN(value) {
		return models.StatusCritical
	}
	if value > b.CriticalHigh || value < b.CriticalLow {
		return models.StatusCritical
	}
	if value > b.WarningHigh || value < b.WarningLow {
		return models.StatusWarning
	}
	return models.StatusNormal
}

// ClassifyReading classifies every metric of a reading. Metrics missing from
// the table are left out of the result and read as normal.
func ClassifyReading(r models.Reading, table map[models.Metric]models.Bounds) models.ClassifiedReading {
	statuses := make(map[models.Metric]models.Status, len(models.Metrics))
	for _, m := range models.Metrics {
		b, ok := table[m]
		if !ok {
			continue
		}
		statuses[m] = Classify(r.Value(m), b)
	}
	return models.ClassifiedReading{Reading: r, Statuses: statuses}
}
