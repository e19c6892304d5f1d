package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"ph-monitor/internal/models"
)

// HistoryStore persists readings and reports and serves time windows back
// to the windowed analysis.
type HistoryStore interface {
	SaveReading(ctx context.Context, reading models.Reading) error
	// QueryWindow returns the finite readings of source with start <= ts <= end, oldest first
	QueryWindow(ctx context.Context, source string, start, end time.Time) ([]models.Reading, error)
	SaveReport(ctx context.Context, report models.Report) error
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the history backend selected by name
func Open(backend string, ch ClickHouseOptions, sqlitePath string) (HistoryStore, error) {
	switch backend {
	case "clickhouse":
		db, err := NewClickHouseDB(ch)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite":
		db, err := NewSQLiteDB(sqlitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
