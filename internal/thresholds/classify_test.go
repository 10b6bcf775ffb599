package thresholds

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

func temperatureBounds() models.Bounds {
	return models.Bounds{
		WarningLow:   18,
		WarningHigh:  26,
		CriticalLow:  math.Inf(-1),
		CriticalHigh: 28,
	}
}

func TestClassifyTemperatureScenario(t *testing.T) {
	b := temperatureBounds()

	assert.Equal(t, models.StatusWarning, Classify(27.0, b))
	assert.Equal(t, models.StatusCritical, Classify(29.0, b))
	assert.Equal(t, models.StatusNormal, Classify(20.0, b))
	assert.Equal(t, models.StatusWarning, Classify(17.9, b))
}

func TestClassifyBoundaryGoesToLessSevereBucket(t *testing.T) {
	b := temperatureBounds()
	const eps = 1e-9

	assert.Equal(t, models.StatusNormal, Classify(b.WarningHigh, b))
	assert.Equal(t, models.StatusWarning, Classify(b.WarningHigh+eps, b))

	assert.Equal(t, models.StatusWarning, Classify(b.CriticalHigh, b))
	assert.Equal(t, models.StatusCritical, Classify(b.CriticalHigh+eps, b))

	assert.Equal(t, models.StatusNormal, Classify(b.WarningLow, b))
	assert.Equal(t, models.StatusWarning, Classify(b.WarningLow-eps, b))

	twoSided := models.Bounds{WarningLow: 35, WarningHigh: 60, CriticalLow: 20, CriticalHigh: 65}
	assert.Equal(t, models.StatusWarning, Classify(20, twoSided))
	assert.Equal(t, models.StatusCritical, Classify(20-eps, twoSided))
}

func TestClassifyIsMonotonicAboveRange(t *testing.T) {
	for m, b := range models.DefaultBounds() {
		prev := models.StatusNormal
		for v := b.WarningLow; v <= b.CriticalHigh+5; v += 0.05 {
			got := Classify(v, b)
			require.GreaterOrEqual(t, got.Severity(), prev.Severity(), "%s at %.2f", m, v)
			prev = got
		}
	}
}

func TestClassifyIsMonotonicBelowRange(t *testing.T) {
	b := models.Bounds{WarningLow: 12, WarningHigh: 15, CriticalLow: 10, CriticalHigh: 16}
	prev := models.StatusNormal
	for v := b.WarningHigh; v >= b.CriticalLow-5; v -= 0.05 {
		got := Classify(v, b)
		require.GreaterOrEqual(t, got.Severity(), prev.Severity(), "value %.2f", v)
		prev = got
	}
}

func TestClassifyNaNIsCritical(t *testing.T) {
	assert.Equal(t, models.StatusCritical, Classify(math.NaN(), temperatureBounds()))
}

func TestClassifyReading(t *testing.T) {
	r := models.Reading{
		ID:          1,
		Timestamp:   time.Now(),
		Temperature: 27,
		Humidity:    50,
		Moisture:    16.5,
		Zone:        "Zone A",
	}

	cr := ClassifyReading(r, models.DefaultBounds())

	assert.Equal(t, models.StatusWarning, cr.StatusOf(models.Temperature))
	assert.Equal(t, models.StatusNormal, cr.StatusOf(models.Humidity))
	assert.Equal(t, models.StatusCritical, cr.StatusOf(models.Moisture))
	assert.Equal(t, models.StatusCritical, cr.Overall())
	assert.Equal(t, r, cr.Reading)
}
