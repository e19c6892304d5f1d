package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ph-monitor/internal/models"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS ph_readings (
		source TEXT    NOT NULL,
		ts     INTEGER NOT NULL,
		value  REAL    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS ph_readings_source_ts ON ph_readings (source, ts);

	CREATE TABLE IF NOT EXISTS ph_reports (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id    TEXT    NOT NULL,
		source       TEXT    NOT NULL,
		generated_at INTEGER NOT NULL,
		state        TEXT    NOT NULL,
		payload      TEXT    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS ph_reports_source ON ph_reports (source, generated_at);
`

// SQLiteDB is the single-file history backend for installations without ClickHouse.
// Timestamps are stored as unix milliseconds.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (and creates if needed) the database at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize SQLite schema: %w", err)
	}

	slog.Info("opened SQLite history", "component", "database", "path", path)
	return &SQLiteDB{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *SQLiteDB) DB() *sql.DB { return s.db }

func (s *SQLiteDB) SaveReading(ctx context.Context, reading models.Reading) error {
	if !finite(reading.Value) {
		return fmt.Errorf("failed to insert pH reading: non-finite value %v", reading.Value)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ph_readings (source, ts, value) VALUES (?, ?, ?)`,
		reading.Source, reading.Timestamp.UnixMilli(), reading.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pH reading: %w", err)
	}
	return nil
}

func (s *SQLiteDB) QueryWindow(ctx context.Context, source string, start, end time.Time) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, value
		FROM ph_readings
		WHERE source = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, source, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query pH window: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var ts int64
		r := models.Reading{Source: source}
		if err := rows.Scan(&ts, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan pH reading: %w", err)
		}
		if !finite(r.Value) {
			continue
		}
		r.Timestamp = time.UnixMilli(ts).UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pH window: %w", err)
	}
	return readings, nil
}

func (s *SQLiteDB) SaveReport(ctx context.Context, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ph_reports (report_id, source, generated_at, state, payload) VALUES (?, ?, ?, ?, ?)`,
		report.ID, report.Source, report.GeneratedAt.UnixMilli(), report.State, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite: %w", err)
	}
	return nil
}
