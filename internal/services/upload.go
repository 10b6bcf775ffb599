package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/relvacode/iso8601"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// UploadService imports sensor log CSV files (the export format) through the ingestor
type UploadService struct {
	ingestor *Ingestor
}

// NewUploadService creates a new UploadService.
func NewUploadService(ingestor *Ingestor) *UploadService {
	return &UploadService{ingestor: ingestor}
}

// ImportResult holds the number of readings imported and the zones they touched.
type ImportResult struct {
	Count         int
	ZonesAffected int
}

// ImportFromCSV parses sensor log CSV from reader and ingests each row in order.
// The header must match ExportHeader; the Status column is ignored because status
// is always recomputed against the current thresholds.
func (u *UploadService) ImportFromCSV(ctx context.Context, reader io.Reader) (*ImportResult, error) {
	r := csv.NewReader(reader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}
	header := records[0]
	if len(header) < len(ExportHeader)-1 {
		return nil, fmt.Errorf("CSV must have columns %s", strings.Join(ExportHeader, ","))
	}
	for i, want := range ExportHeader[:5] {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, fmt.Errorf("column %d must be %q, got %q", i+1, want, header[i])
		}
	}

	readings := make([]models.Reading, 0, len(records)-1)
	for rowIdx, row := range records[1:] {
		if len(row) == 0 || allEmpty(row) {
			continue
		}
		reading, err := parseLogRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIdx+2, err)
		}
		readings = append(readings, reading)
	}

	results, err := u.ingestor.IngestBatch(ctx, readings)
	zones := make(map[string]struct{})
	for _, res := range results {
		zones[NormalizeZone(res.Reading.Zone)] = struct{}{}
	}
	result := &ImportResult{Count: len(results), ZonesAffected: len(zones)}
	if err != nil {
		return result, fmt.Errorf("failed to import CSV: %w", err)
	}
	return result, nil
}

func parseLogRow(row []string) (models.Reading, error) {
	if len(row) < 5 {
		return models.Reading{}, fmt.Errorf("expected at least 5 columns, got %d", len(row))
	}
	tsStr := strings.TrimSpace(row[0])
	if tsStr == "" {
		return models.Reading{}, fmt.Errorf("empty timestamp")
	}
	ts, err := iso8601.ParseString(tsStr)
	if err != nil {
		return models.Reading{}, fmt.Errorf("invalid timestamp %q: %w", tsStr, err)
	}

	var values [3]float64
	for i := range values {
		valStr := strings.TrimSpace(row[i+1])
		values[i], err = strconv.ParseFloat(valStr, 64)
		if err != nil {
			return models.Reading{}, fmt.Errorf("column %s: invalid number %q: %w", ExportHeader[i+1], valStr, err)
		}
	}

	return models.Reading{
		Timestamp:   ts.UTC(),
		Temperature: values[0],
		Humidity:    values[1],
		Moisture:    values[2],
		Zone:        strings.TrimSpace(row[4]),
	}, nil
}

func allEmpty(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
