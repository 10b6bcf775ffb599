package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// ExportHeader is the header row of the sensor log CSV
var ExportHeader = []string{"Timestamp", "Temperature (°C)", "Humidity (%)", "Moisture (%)", "Location", "Status"}

// ExportCSV writes classified readings as sensor log CSV and returns the number of rows written
func ExportCSV(w io.Writer, seq iter.Seq[models.ClassifiedReading]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	count := 0
	for cr := range seq {
		row := []string{
			cr.Timestamp.UTC().Format(time.RFC3339),
			FormatValue(cr.Temperature),
			FormatValue(cr.Humidity),
			FormatValue(cr.Moisture),
			cr.Zone,
			string(cr.Overall()),
		}
		if err := cw.Write(row); err != nil {
			return count, fmt.Errorf("failed to write CSV row %d: %w", count+1, err)
		}
		count++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return count, nil
}
