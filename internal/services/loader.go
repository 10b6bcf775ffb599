package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// ReadingsFile is the JSON shape of a seed file. A bare array of readings is accepted too.
type ReadingsFile struct {
	Readings []models.Reading `json:"readings"`
}

// Loader loads readings from JSON files through the ingestor
type Loader struct {
	ingestor *Ingestor
	logger   *slog.Logger
}

// NewLoader creates a new Loader instance
func NewLoader(ingestor *Ingestor, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{ingestor: ingestor, logger: logger.With("component", "loader")}
}

// LoadFromFile loads readings from a JSON file
func (l *Loader) LoadFromFile(ctx context.Context, filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return l.LoadFromReader(ctx, file)
}

// LoadFromFolder loads every .json file of a folder in name order
func (l *Loader) LoadFromFolder(ctx context.Context, folderPath string) (int, int, error) {
	startTime := time.Now()
	if !filepath.IsAbs(folderPath) {
		folderPath = filepath.Join(".", folderPath)
	}
	l.logger.Info("loading readings from folder", "path", folderPath)

	files, err := os.ReadDir(folderPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read folder: %w", err)
	}

	totalCount := 0
	filesCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}

		fileStartTime := time.Now()
		count, err := l.LoadFromFile(ctx, filepath.Join(folderPath, file.Name()))
		totalCount += count
		if err != nil {
			return totalCount, filesCount, fmt.Errorf("failed to load file %s: %w", file.Name(), err)
		}
		filesCount++
		l.logger.Info("loaded file", "file", file.Name(), "readings", count,
			"took", time.Since(fileStartTime).Round(time.Millisecond))
	}

	l.logger.Info("load completed", "readings", totalCount, "files", filesCount,
		"took", time.Since(startTime).Round(time.Millisecond))
	return totalCount, filesCount, nil
}

// LoadFromReader decodes readings from r and ingests them in order. Readings with a
// zero ID get the next free ID.
func (l *Loader) LoadFromReader(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read input: %w", err)
	}

	var readings []models.Reading
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &readings)
	} else {
		var input ReadingsFile
		err = json.Unmarshal(trimmed, &input)
		readings = input.Readings
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	results, err := l.ingestor.IngestBatch(ctx, readings)
	return len(results), err
}
