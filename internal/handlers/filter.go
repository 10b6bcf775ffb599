package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// ParseFilter builds a reading filter from query parameters:
//
//	q, zone, status (overall), <metric>_status, <metric>_min, <metric>_max, from, to
//
// from and to accept any ISO 8601 timestamp.
func ParseFilter(q url.Values) (services.Filter, error) {
	f := services.Filter{
		Text: strings.TrimSpace(q.Get("q")),
		Zone: strings.TrimSpace(q.Get("zone")),
	}

	if s := q.Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Overall = status
	}

	for _, m := range models.Metrics {
		if s := q.Get(string(m) + "_status"); s != "" {
			status, err := models.ParseStatus(s)
			if err != nil {
				return f, fmt.Errorf("%s_status: %w", m, err)
			}
			if f.Status == nil {
				f.Status = make(map[models.Metric]models.Status)
			}
			f.Status[m] = status
		}

		lo, err := optionalFloat(q, string(m)+"_min")
		if err != nil {
			return f, err
		}
		hi, err := optionalFloat(q, string(m)+"_max")
		if err != nil {
			return f, err
		}
		if lo != nil || hi != nil {
			if f.Ranges == nil {
				f.Ranges = make(map[models.Metric]services.Range)
			}
			f.Ranges[m] = services.Range{Min: lo, Max: hi}
		}
	}

	var err error
	if f.From, err = optionalTime(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = optionalTime(q, "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("to (%s) is before from (%s)", f.To.Format(time.RFC3339), f.From.Format(time.RFC3339))
	}
	return f, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &v, nil
}

func optionalTime(q url.Values, key string) (time.Time, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t.UTC(), nil
}
