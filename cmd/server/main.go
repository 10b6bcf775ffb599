package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/config"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/database"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/handlers"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/metrics"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/store"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/thresholds"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/websocket"
)

const (
	historySize       = 50
	generateCount     = 100
	pruneInterval     = time.Hour
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "granary: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	configPath := flag.String("config", "config.json", "Path to config file")
	dbPath := flag.String("db", "", "Path to SQLite database file (overrides config)")
	port := flag.String("port", "", "Server port (overrides config)")
	simulate := flag.Bool("simulate", false, "Run the reading simulator (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfigWithDefaults(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override with command line flags if provided
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *simulate {
		cfg.Simulator.Enabled = true
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.DateTime}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("database initialized", "path", cfg.Database.Path)

	// Threshold table: config over defaults, then whatever operators saved last time
	bounds, err := cfg.Bounds()
	if err != nil {
		return err
	}
	saved, err := db.LoadBounds(ctx)
	if err != nil {
		return err
	}
	for m, b := range saved {
		if _, ok := bounds[m]; !ok {
			logger.Warn("ignoring stored thresholds for unknown metric", "metric", m)
			continue
		}
		bounds[m] = b
	}
	table, err := thresholds.NewTable(bounds)
	if err != nil {
		return fmt.Errorf("stored thresholds are invalid: %w", err)
	}
	table.OnChange(func(m models.Metric, b models.Bounds) error {
		return db.SaveBounds(context.Background(), m, b)
	})

	// Reading store, warmed from the archive
	readings := store.NewMemoryStore(store.Retention{
		Capacity: cfg.Store.Capacity,
		Window:   cfg.Store.RetentionWindow,
	})
	recent, err := db.LoadRecentReadings(ctx, cfg.Store.Capacity)
	if err != nil {
		return err
	}
	for _, r := range recent {
		if err := readings.Append(r); err != nil {
			logger.Warn("skipping archived reading", "id", r.ID, "error", err)
		}
	}
	logger.Info("reading store warmed", "readings", readings.Len(), "capacity", cfg.Store.Capacity,
		"retention", cfg.Store.RetentionWindow)

	// Alert log
	projector := services.NewAlertProjector(table, logger)
	stored, err := db.ListAlerts(ctx)
	if err != nil {
		return err
	}
	projector.Restore(stored)

	queryService := services.NewQueryService(readings, table, logger)

	// Live stream
	hub := websocket.NewHub(func() any {
		return history(readings, queryService, projector)
	}, logger)
	go hub.Run(ctx)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.TrackGauges(readings.Len, projector.OpenCount, hub.ClientCount)
	readings.OnEvict(m.ReadingEvicted)

	// Initialize services
	ingestor := services.NewIngestor(readings, table, projector, logger, db, hub, m)
	generator := services.NewGenerator(ingestor, services.GeneratorOptions{Jitter: cfg.Simulator.Jitter}, logger)
	loader := services.NewLoader(ingestor, logger)
	uploadService := services.NewUploadService(ingestor)
	zonesService := services.NewZonesService(queryService)

	if cfg.Simulator.Enabled {
		go func() {
			if err := generator.Run(ctx, cfg.Simulator.Tick); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("simulator failed", "error", err)
			}
		}()
	}
	if cfg.Store.RetentionWindow > 0 {
		go pruneArchive(ctx, db, readings, cfg.Store.RetentionWindow, logger)
	}

	router := handlers.NewRouter(handlers.Handlers{
		Readings:   handlers.NewReadingsHandler(ingestor, queryService, readings, logger),
		Upload:     handlers.NewUploadHandler(uploadService),
		Load:       handlers.NewLoadHandler(loader, cfg.Data.RawDataFolder),
		Zones:      handlers.NewZonesHandler(zonesService),
		Alerts:     handlers.NewAlertsHandler(projector, ingestor),
		Thresholds: handlers.NewThresholdsHandler(table, logger),
		Generator:  handlers.NewGeneratorHandler(generator, generateCount, logger),
		Config:     handlers.NewConfigHandler(cfg, table),
		WS:         hub.ServeWS,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Info("server starting", "addr", addr, "simulator", cfg.Simulator.Enabled)
	for _, e := range handlers.Endpoints {
		logger.Debug("endpoint", "route", e)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// historyPayload is what a dashboard receives on connect
type historyPayload struct {
	Readings []models.ClassifiedReading `json:"readings"`
	Alerts   []models.Alert             `json:"alerts"`
}

// history collects the newest readings and every open alert
func history(readings *store.MemoryStore, query *services.QueryService, projector *services.AlertProjector) historyPayload {
	all := slices.Collect(readings.All())
	recent := slices.Collect(query.Classify(slices.Values(all[max(len(all)-historySize, 0):])))
	if recent == nil {
		recent = []models.ClassifiedReading{}
	}
	open := slices.DeleteFunc(projector.List(services.AlertFilter{}), func(a models.Alert) bool {
		return !a.State.Open()
	})
	return historyPayload{Readings: recent, Alerts: open}
}

// pruneArchive drops archived readings that fell out of the retention window
func pruneArchive(ctx context.Context, db *database.DB, readings *store.MemoryStore, window time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latest, ok := readings.Latest()
			if !ok {
				continue
			}
			n, err := db.DeleteReadingsBefore(ctx, latest.Timestamp.Add(-window))
			if err != nil {
				logger.Error("archive prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("archive pruned", "readings", n)
			}
		}
	}
}
