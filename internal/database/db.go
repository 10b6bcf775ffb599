package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and runs migrations
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers anyway
	conn.SetMaxOpenConns(1)

	db := New(conn)
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// New wraps an already opened connection without migrating it
func New(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the necessary tables if they don't exist
func (db *DB) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		temperature REAL NOT NULL,
		humidity REAL NOT NULL,
		moisture REAL NOT NULL,
		zone TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		reading_id INTEGER NOT NULL,
		metric TEXT NOT NULL,
		zone TEXT NOT NULL,
		severity TEXT NOT NULL,
		value REAL NOT NULL,
		threshold REAL NOT NULL,
		message TEXT NOT NULL,
		recommendations TEXT NOT NULL DEFAULT '[]',
		state TEXT NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		acknowledged_at INTEGER,
		resolved_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);

	CREATE TABLE IF NOT EXISTS thresholds (
		metric TEXT PRIMARY KEY,
		warning_low REAL,
		warning_high REAL,
		critical_low REAL,
		critical_high REAL,
		updated_at TEXT NOT NULL
	);
	`

	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// InsertReading archives a reading. Re-inserting an ID overwrites the row.
func (db *DB) InsertReading(ctx context.Context, r models.Reading) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO readings (id, timestamp, temperature, humidity, moisture, zone)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Timestamp.UnixMilli(), r.Temperature, r.Humidity, r.Moisture, r.Zone)
	if err != nil {
		return fmt.Errorf("failed to insert reading %d: %w", r.ID, err)
	}
	return nil
}

// LoadRecentReadings returns up to limit of the newest archived readings in ascending ID order.
// A non-positive limit loads everything.
func (db *DB) LoadRecentReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	query := `SELECT id, timestamp, temperature, humidity, moisture, zone FROM readings ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var result []models.Reading
	for rows.Next() {
		var r models.Reading
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.Temperature, &r.Humidity, &r.Moisture, &r.Zone); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts).UTC()
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}
	slices.Reverse(result)
	return result, nil
}

// DeleteReadingsBefore prunes archived readings older than cutoff and returns how many were removed
func (db *DB) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM readings WHERE timestamp < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned readings: %w", err)
	}
	return n, nil
}

// UpsertAlert inserts an alert or updates its mutable fields
func (db *DB) UpsertAlert(ctx context.Context, a models.Alert) error {
	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO alerts (id, reading_id, metric, zone, severity, value, threshold, message,
			recommendations, state, acknowledged, created_at, acknowledged_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reading_id = excluded.reading_id,
			severity = excluded.severity,
			value = excluded.value,
			threshold = excluded.threshold,
			message = excluded.message,
			state = excluded.state,
			acknowledged = excluded.acknowledged,
			acknowledged_at = excluded.acknowledged_at,
			resolved_at = excluded.resolved_at
	`, a.ID, a.ReadingID, string(a.Metric), a.Zone, string(a.Severity), a.Value, a.Threshold, a.Message,
		string(recs), string(a.State), a.Acknowledged, a.CreatedAt.UnixMilli(),
		nullableMillis(a.AcknowledgedAt), nullableMillis(a.ResolvedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert alert %s: %w", a.ID, err)
	}
	return nil
}

// ListAlerts returns every stored alert, oldest first
func (db *DB) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, reading_id, metric, zone, severity, value, threshold, message,
			recommendations, state, acknowledged, created_at, acknowledged_at, resolved_at
		FROM alerts ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var result []models.Alert
	for rows.Next() {
		var a models.Alert
		var metric, severity, state, recs string
		var createdAt int64
		var ackAt, resolvedAt sql.NullInt64
		if err := rows.Scan(&a.ID, &a.ReadingID, &metric, &a.Zone, &severity, &a.Value, &a.Threshold, &a.Message,
			&recs, &state, &a.Acknowledged, &createdAt, &ackAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(recs), &a.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations of alert %s: %w", a.ID, err)
		}
		a.Metric = models.Metric(metric)
		a.Severity = models.Status(severity)
		a.State = models.AlertState(state)
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		a.AcknowledgedAt = timeFromMillis(ackAt)
		a.ResolvedAt = timeFromMillis(resolvedAt)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return result, nil
}

// SaveBounds stores the bounds of one metric; infinite sides are stored as NULL
func (db *DB) SaveBounds(ctx context.Context, metric models.Metric, b models.Bounds) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO thresholds (metric, warning_low, warning_high, critical_low, critical_high, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(metric) DO UPDATE SET
			warning_low = excluded.warning_low,
			warning_high = excluded.warning_high,
			critical_low = excluded.critical_low,
			critical_high = excluded.critical_high,
			updated_at = excluded.updated_at
	`, string(metric), nullableBound(b.WarningLow), nullableBound(b.WarningHigh),
		nullableBound(b.CriticalLow), nullableBound(b.CriticalHigh), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save bounds for %s: %w", metric, err)
	}
	return nil
}

// LoadBounds returns the stored threshold table; metrics never saved are absent
func (db *DB) LoadBounds(ctx context.Context) (map[models.Metric]models.Bounds, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT metric, warning_low, warning_high, critical_low, critical_high FROM thresholds")
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	result := make(map[models.Metric]models.Bounds)
	for rows.Next() {
		var metric string
		var wl, wh, cl, ch sql.NullFloat64
		if err := rows.Scan(&metric, &wl, &wh, &cl, &ch); err != nil {
			return nil, fmt.Errorf("failed to scan thresholds: %w", err)
		}
		result[models.Metric(metric)] = models.Bounds{
			WarningLow:   boundOrInf(wl, -1),
			WarningHigh:  boundOrInf(wh, 1),
			CriticalLow:  boundOrInf(cl, -1),
			CriticalHigh: boundOrInf(ch, 1),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thresholds: %w", err)
	}
	return result, nil
}

func nullableBound(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func boundOrInf(n sql.NullFloat64, sign int) float64 {
	if !n.Valid {
		return math.Inf(sign)
	}
	return n.Float64
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}
