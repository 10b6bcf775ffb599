package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Status is the classification of a metric value against its bounds
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Severity orders statuses: normal < warning < critical
func (s Status) Severity() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 0
	}
}

// ParseStatus converts a status name to a Status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNormal, StatusWarning, StatusCritical:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Bounds holds the warning and critical limits for one metric.
// A side without a limit is stored as ±Inf.
type Bounds struct {
	WarningLow   float64
	WarningHigh  float64
	CriticalLow  float64
	CriticalHigh float64
}

// HighOnly builds bounds with no lower limits
func HighOnly(warningHigh, criticalHigh float64) Bounds {
	return Bounds{
		WarningLow:   math.Inf(-1),
		WarningHigh:  warningHigh,
		CriticalLow:  math.Inf(-1),
		CriticalHigh: criticalHigh,
	}
}

// Validate checks criticalHigh >= warningHigh >= warningLow >= criticalLow
func (b Bounds) Validate() error {
	for _, v := range []float64{b.WarningLow, b.WarningHigh, b.CriticalLow, b.CriticalHigh} {
		if math.IsNaN(v) {
			return fmt.Errorf("bound is NaN")
		}
	}
	if b.CriticalHigh < b.WarningHigh {
		return fmt.Errorf("critical_high (%g) is below warning_high (%g)", b.CriticalHigh, b.WarningHigh)
	}
	if b.WarningHigh < b.WarningLow {
		return fmt.Errorf("warning_high (%g) is below warning_low (%g)", b.WarningHigh, b.WarningLow)
	}
	if b.WarningLow < b.CriticalLow {
		return fmt.Errorf("warning_low (%g) is below critical_low (%g)", b.WarningLow, b.CriticalLow)
	}
	return nil
}

// boundsJSON is the wire shape of Bounds; infinite sides are omitted
type boundsJSON struct {
	WarningLow   *float64 `json:"warning_low,omitempty"`
	WarningHigh  *float64 `json:"warning_high,omitempty"`
	CriticalLow  *float64 `json:"critical_low,omitempty"`
	CriticalHigh *float64 `json:"critical_high,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orInf(v *float64, sign int) float64 {
	if v == nil {
		return math.Inf(sign)
	}
	return *v
}

// MarshalJSON encodes infinite bounds as absent fields
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(boundsJSON{
		WarningLow:   finite(b.WarningLow),
		WarningHigh:  finite(b.WarningHigh),
		CriticalLow:  finite(b.CriticalLow),
		CriticalHigh: finite(b.CriticalHigh),
	})
}

// UnmarshalJSON treats absent or null low bounds as -Inf and high bounds as +Inf
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var raw boundsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Bounds{
		WarningLow:   orInf(raw.WarningLow, -1),
		WarningHigh:  orInf(raw.WarningHigh, 1),
		CriticalLow:  orInf(raw.CriticalLow, -1),
		CriticalHigh: orInf(raw.CriticalHigh, 1),
	}
	return nil
}

// Limit returns the bound crossed by value at the given status, used in alert records
func (b Bounds) Limit(value float64, s Status) float64 {
	switch s {
	case StatusCritical:
		if value < b.CriticalLow {
			return b.CriticalLow
		}
		return b.CriticalHigh
	case StatusWarning:
		if value < b.WarningLow {
			return b.WarningLow
		}
		return b.WarningHigh
	default:
		return value
	}
}

// DefaultBounds returns the factory threshold table
func DefaultBounds() map[Metric]Bounds {
	return map[Metric]Bounds{
		Temperature: {WarningLow: 18, WarningHigh: 26, CriticalLow: math.Inf(-1), CriticalHigh: 28},
		Humidity:    {WarningLow: 35, WarningHigh: 60, CriticalLow: math.Inf(-1), CriticalHigh: 65},
		Moisture:    {WarningLow: 12, WarningHigh: 15, CriticalLow: math.Inf(-1), CriticalHigh: 16},
	}
}
