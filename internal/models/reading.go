package models

import (
	"fmt"
	"time"
)

// Metric names one environmental quantity measured by a silo sensor
type Metric string

const (
	Temperature Metric = "temperature"
	Humidity    Metric = "humidity"
	Moisture    Metric = "moisture"
)

// Metrics lists every metric carried by a Reading, in display order
var Metrics = []Metric{Temperature, Humidity, Moisture}

// ParseMetric converts a case-sensitive metric name to a Metric
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Label returns the capitalized metric name used in alert messages
func (m Metric) Label() string {
	switch m {
	case Temperature:
		return "Temperature"
	case Humidity:
		return "Humidity"
	case Moisture:
		return "Moisture"
	default:
		return string(m)
	}
}

// Unit returns the display unit of the metric
func (m Metric) Unit() string {
	if m == Temperature {
		return "°C"
	}
	return "%"
}

// Reading represents a single timestamped sample from a storage zone
type Reading struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // % RH
	Moisture    float64   `json:"moisture"`    // % grain moisture content
	Zone        string    `json:"zone"`
}

// Value returns the reading's value for the given metric
func (r Reading) Value(m Metric) float64 {
	switch m {
	case Temperature:
		return r.Temperature
	case Humidity:
		return r.Humidity
	case Moisture:
		return r.Moisture
	default:
		return 0
	}
}

// ClassifiedReading is a Reading plus the status of each of its metrics
type ClassifiedReading struct {
	Reading
	Statuses map[Metric]Status `json:"statuses"`
}

// StatusOf returns the classified status for a metric (normal when absent)
func (c ClassifiedReading) StatusOf(m Metric) Status {
	if s, ok := c.Statuses[m]; ok {
		return s
	}
	return StatusNormal
}

// Overall returns the most severe status across all metrics
func (c ClassifiedReading) Overall() Status {
	worst := StatusNormal
	for _, s := range c.Statuses {
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}
