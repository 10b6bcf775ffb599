package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/store"
)

func TestGeneratorWaves(t *testing.T) {
	p := newPipeline(t, store.Retention{})
	g := NewGenerator(p.ingestor, GeneratorOptions{}, discardLogger())

	readings := g.Generate(t0, 4, time.Hour)
	require.Len(t, readings, 4)

	assert.Equal(t, models.Reading{Timestamp: t0, Temperature: 24, Humidity: 70, Moisture: 14, Zone: "Zone A"}, readings[0])
	assert.InDelta(t, 24+math.Sin(0.5)*6, readings[1].Temperature, 1e-9)
	assert.InDelta(t, 55+math.Cos(0.5)*15, readings[1].Humidity, 1e-9)
	assert.InDelta(t, 14+math.Sin(0.3)*3, readings[1].Moisture, 1e-9)
	assert.Equal(t, t0.Add(time.Hour), readings[1].Timestamp)

	zones := []string{readings[0].Zone, readings[1].Zone, readings[2].Zone, readings[3].Zone}
	assert.Equal(t, []string{"Zone A", "Zone B", "Zone C", "Zone A"}, zones)
}

func TestGeneratorJitterStaysWithinAmplitude(t *testing.T) {
	p := newPipeline(t, store.Retention{})
	g := NewGenerator(p.ingestor, GeneratorOptions{Jitter: 0.1, Seed: 42}, discardLogger())

	for i, r := range g.Generate(t0, 50, time.Minute) {
		x := float64(i)
		assert.InDelta(t, 24+math.Sin(x*0.5)*6, r.Temperature, 0.6+1e-9)
		assert.InDelta(t, 55+math.Cos(x*0.5)*15, r.Humidity, 1.5+1e-9)
		assert.InDelta(t, 14+math.Sin(x*0.3)*3, r.Moisture, 0.3+1e-9)
	}
}

func TestGenerateAndIngest(t *testing.T) {
	p := newPipeline(t, store.Retention{})
	g := NewGenerator(p.ingestor, GeneratorOptions{}, discardLogger())

	var progress []int
	n, err := g.GenerateAndIngest(context.Background(), t0, 7, time.Minute, func(done int) {
		progress = append(progress, done)
	})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []int{3, 6, 7}, progress)
	assert.Equal(t, 7, p.store.Len())

	// humidity starts at 70, above the critical bound
	assert.NotEmpty(t, p.projector.List(AlertFilter{Metric: models.Humidity}))

	_, err = g.GenerateAndIngest(context.Background(), t0, 0, time.Minute, nil)
	require.Error(t, err)
	_, err = g.GenerateAndIngest(context.Background(), t0, 3, 0, nil)
	require.Error(t, err)
}

func TestGeneratorRun(t *testing.T) {
	p := newPipeline(t, store.Retention{})
	g := NewGenerator(p.ingestor, GeneratorOptions{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return p.store.Len() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("generator did not stop")
	}
	assert.Equal(t, []string{"Zone A", "Zone B", "Zone C"}, Zones(p.store.All()))
}
