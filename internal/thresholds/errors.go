package thresholds

import (
	"errors"
	"fmt"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

var (
	// ErrInvalidBounds is matched by every InvalidBoundsError.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrUnknownMetric is returned for a metric the table does not hold.
	ErrUnknownMetric = errors.New("unknown metric")
)

// InvalidBoundsError is returned when an update would break the ordering
// critical_high >= warning_high >= warning_low >= critical_low.
type InvalidBoundsError struct {
	Metric models.Metric
	Bounds models.Bounds
	Reason error
}

func (e *InvalidBoundsError) Error() string {
	return fmt.Sprintf("invalid bounds for %s: %v", e.Metric, e.Reason)
}

func (e *InvalidBoundsError) Is(target error) bool {
	return target == ErrInvalidBounds
}

func (e *InvalidBoundsError) Unwrap() error {
	return e.Reason
}
