package database

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

var ts = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(conn), mock
}

func TestMigrate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS readings")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO readings")).
		WithArgs(int64(7), ts.UnixMilli(), 22.5, 50.0, 13.0, "Zone A").
		WillReturnResult(sqlmock.NewResult(7, 1))

	err := db.InsertReading(context.Background(), models.Reading{
		ID: 7, Timestamp: ts, Temperature: 22.5, Humidity: 50, Moisture: 13, Zone: "Zone A",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReadingWrapsError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO readings")).
		WillReturnError(sql.ErrConnDone)

	err := db.InsertReading(context.Background(), models.Reading{ID: 1, Timestamp: ts})
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "reading 1")
}

func TestLoadRecentReadingsAscending(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "timestamp", "temperature", "humidity", "moisture", "zone"}).
		AddRow(int64(3), ts.Add(2*time.Minute).UnixMilli(), 24.0, 52.0, 13.5, "Zone C").
		AddRow(int64(2), ts.Add(time.Minute).UnixMilli(), 23.0, 51.0, 13.2, "Zone B")
	mock.ExpectQuery(regexp.QuoteMeta("FROM readings ORDER BY id DESC LIMIT ?")).
		WithArgs(int64(2)).
		WillReturnRows(rows)

	got, err := db.LoadRecentReadings(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.Reading{ID: 2, Timestamp: ts.Add(time.Minute), Temperature: 23, Humidity: 51, Moisture: 13.2, Zone: "Zone B"}, got[0])
	assert.Equal(t, int64(3), got[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReadingsBefore(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM readings WHERE timestamp < ?")).
		WithArgs(ts.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := db.DeleteReadingsBefore(context.Background(), ts)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestUpsertAlert(t *testing.T) {
	db, mock := newMockDB(t)
	resolved := ts.Add(time.Hour)
	a := models.Alert{
		ID:              "6f1c",
		ReadingID:       12,
		Metric:          models.Temperature,
		Zone:            "Zone A",
		Severity:        models.StatusCritical,
		Value:           29.2,
		Threshold:       28,
		Message:         "Temperature exceeded critical threshold",
		Recommendations: []string{"Check ventilation system"},
		State:           models.AlertResolved,
		CreatedAt:       ts,
		ResolvedAt:      &resolved,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WithArgs("6f1c", int64(12), "temperature", "Zone A", "critical", 29.2, 28.0,
			"Temperature exceeded critical threshold", `["Check ventilation system"]`, "resolved", false,
			ts.UnixMilli(), nil, resolved.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.UpsertAlert(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlerts(t *testing.T) {
	db, mock := newMockDB(t)
	acked := ts.Add(10 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "reading_id", "metric", "zone", "severity", "value", "threshold", "message",
		"recommendations", "state", "acknowledged", "created_at", "acknowledged_at", "resolved_at"}).
		AddRow("a1", int64(4), "humidity", "Zone B", "warning", 62.0, 60.0, "Humidity exceeded warning threshold",
			`["Inspect roof seals"]`, "acknowledged", int64(1), ts.UnixMilli(), acked.UnixMilli(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM alerts ORDER BY created_at")).WillReturnRows(rows)

	got, err := db.ListAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, models.Humidity, a.Metric)
	assert.Equal(t, models.AlertAcknowledged, a.State)
	assert.True(t, a.Acknowledged)
	assert.Equal(t, []string{"Inspect roof seals"}, a.Recommendations)
	assert.Equal(t, ts, a.CreatedAt)
	require.NotNil(t, a.AcknowledgedAt)
	assert.Equal(t, acked, *a.AcknowledgedAt)
	assert.Nil(t, a.ResolvedAt)
}

func TestSaveBoundsStoresInfiniteAsNull(t *testing.T) {
	db, mock := newMockDB(t)
	b := models.DefaultBounds()[models.Temperature]
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thresholds")).
		WithArgs("temperature", 18.0, 26.0, nil, 28.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.SaveBounds(context.Background(), models.Temperature, b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBounds(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"metric", "warning_low", "warning_high", "critical_low", "critical_high"}).
		AddRow("moisture", 12.0, 15.0, nil, 16.0).
		AddRow("humidity", nil, 60.0, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM thresholds")).WillReturnRows(rows)

	got, err := db.LoadBounds(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.Bounds{WarningLow: 12, WarningHigh: 15, CriticalLow: math.Inf(-1), CriticalHigh: 16}, got[models.Moisture])
	hum := got[models.Humidity]
	assert.True(t, math.IsInf(hum.WarningLow, -1))
	assert.True(t, math.IsInf(hum.CriticalHigh, 1))
	assert.Equal(t, 60.0, hum.WarningHigh)
	_, ok := got[models.Temperature]
	assert.False(t, ok)
}

func TestConsume(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO readings")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev := services.Event{
		Kind:    services.EventReading,
		Reading: models.ClassifiedReading{Reading: models.Reading{ID: 1, Timestamp: ts, Zone: "Zone A"}},
		Raised:  []models.Alert{{ID: "new", CreatedAt: ts}},
		Updated: []models.Alert{{ID: "old", CreatedAt: ts}},
	}
	err := db.Consume(context.Background(), ev)
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeSkipsRejectedReadings(t *testing.T) {
	db, mock := newMockDB(t)

	err := db.Consume(context.Background(), services.Event{Kind: services.EventRejected})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
