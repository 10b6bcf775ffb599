package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// DefaultZones are the storage zones produced by the generator
var DefaultZones = []string{"Zone A", "Zone B", "Zone C"}

// GeneratorOptions configures synthetic reading generation
type GeneratorOptions struct {
	Zones  []string
	Jitter float64 // 0 disables noise; 0.1 adds up to ±10% of each wave's amplitude
	Seed   uint64  // 0 seeds from the clock
}

// Generator produces synthetic sensor readings that follow slow sine waves,
// crossing the default thresholds regularly so alerts can be exercised
type Generator struct {
	ingestor *Ingestor
	zones    []string
	jitter   float64

	mu   sync.Mutex
	rng  *rand.Rand
	step int

	logger *slog.Logger
}

// NewGenerator creates a new Generator instance
func NewGenerator(ingestor *Ingestor, opts GeneratorOptions, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	zones := opts.Zones
	if len(zones) == 0 {
		zones = DefaultZones
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		ingestor: ingestor,
		zones:    zones,
		jitter:   opts.Jitter,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		logger:   logger.With("component", "generator"),
	}
}

// Reading returns the synthetic reading for step i. The ID is left zero for the
// ingestor to assign.
func (g *Generator) Reading(i int, at time.Time) models.Reading {
	x := float64(i)
	return models.Reading{
		Timestamp:   at.UTC(),
		Temperature: 24 + math.Sin(x*0.5)*6 + g.noise(6),
		Humidity:    55 + math.Cos(x*0.5)*15 + g.noise(15),
		Moisture:    14 + math.Sin(x*0.3)*3 + g.noise(3),
		Zone:        g.zones[i%len(g.zones)],
	}
}

func (g *Generator) noise(amplitude float64) float64 {
	if g.jitter <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return (g.rng.Float64()*2 - 1) * g.jitter * amplitude
}

// Generate returns count readings spaced by interval, starting at start
func (g *Generator) Generate(start time.Time, count int, interval time.Duration) []models.Reading {
	out := make([]models.Reading, 0, max(count, 0))
	for i := range count {
		out = append(out, g.Reading(i, start.Add(time.Duration(i)*interval)))
	}
	return out
}

// GenerateAndIngest generates count readings and feeds them to the ingestor.
// onProgress, when set, is called after each zone cycle with the number ingested so far.
func (g *Generator) GenerateAndIngest(ctx context.Context, start time.Time, count int, interval time.Duration, onProgress func(done int)) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("count must be positive, got %d", count)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %v", interval)
	}
	generateStartTime := time.Now()
	g.logger.Info("starting generation", "count", count, "interval", interval, "start", start.Format(time.RFC3339))

	done := 0
	for i, r := range g.Generate(start, count, interval) {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := g.ingestor.Ingest(ctx, r); err != nil {
			return done, fmt.Errorf("failed to ingest generated reading %d: %w", i+1, err)
		}
		done++
		if onProgress != nil && (done%len(g.zones) == 0 || done == count) {
			onProgress(done)
		}
	}

	g.logger.Info("generation completed", "count", done, "took", time.Since(generateStartTime).Round(time.Millisecond))
	return done, nil
}

// Run ingests one reading per interval, stamped with the current time, until ctx is done
func (g *Generator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	g.logger.Info("simulator started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("simulator stopped")
			return ctx.Err()
		case now := <-ticker.C:
			g.mu.Lock()
			step := g.step
			g.step++
			g.mu.Unlock()

			if _, err := g.ingestor.Ingest(ctx, g.Reading(step, now)); err != nil {
				g.logger.Warn("simulated reading rejected", "step", step, "error", err)
			}
		}
	}
}
