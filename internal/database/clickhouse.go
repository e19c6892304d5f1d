package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"ph-monitor/internal/models"
)

type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
}

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(opts ClickHouseOptions) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	db, err := newClickHouseDB(context.Background(), conn)
	if err != nil {
		return nil, err
	}

	slog.Info("connected to ClickHouse", "component", "database", "addr", opts.Addr)
	return db, nil
}

// newClickHouseDB checks conn and creates the schema. conn is closed on failure.
func newClickHouseDB(ctx context.Context, conn driver.Conn) (*ClickHouseDB, error) {
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	db := &ClickHouseDB{conn: conn}
	if err := db.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// SaveReading saves a pH reading to the database
func (db *ClickHouseDB) SaveReading(ctx context.Context, reading models.Reading) error {
	query := `
		INSERT INTO ph_readings (timestamp, source, value)
		VALUES (?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		reading.Timestamp,
		reading.Source,
		reading.Value,
	)

	if err != nil {
		return fmt.Errorf("failed to insert pH reading: %w", err)
	}

	return nil
}

// QueryWindow returns the readings of a source between start and end, oldest first
func (db *ClickHouseDB) QueryWindow(ctx context.Context, source string, start, end time.Time) ([]models.Reading, error) {
	query := `
		SELECT timestamp, value
		FROM ph_readings
		WHERE source = ? AND timestamp >= ? AND timestamp <= ?
			AND isFinite(value)
		ORDER BY timestamp ASC
	`

	rows, err := db.conn.Query(ctx, query, source, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query pH window: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		r := models.Reading{Source: source}
		if err := rows.Scan(&r.Timestamp, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan pH reading: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pH window: %w", err)
	}

	return readings, nil
}

// SaveReport appends a report to the report log
func (db *ClickHouseDB) SaveReport(ctx context.Context, report models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `
		INSERT INTO ph_reports (generated_at, report_id, source, mode, state, trend, status, current_ph, amplitude, oscillations, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = db.conn.Exec(ctx, query,
		report.GeneratedAt,
		report.ID,
		report.Source,
		report.Mode,
		report.State,
		report.Trend,
		report.Status,
		report.CurrentPH,
		report.Amplitude,
		uint32(report.Oscillations),
		string(payload),
	)

	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		slog.Info("ClickHouse connection closed", "component", "database")
	}
	return nil
}
