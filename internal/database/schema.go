package database

// SQL schemas for the ClickHouse tables

const (
	// PHReadingsTableSQL creates the ph_readings table
	PHReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS ph_readings (
			timestamp DateTime64(3),
			source String,
			value Float64
		) ENGINE = MergeTree()
		ORDER BY (source, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// PHReportsTableSQL creates the ph_reports table, one row per emitted report
	PHReportsTableSQL = `
		CREATE TABLE IF NOT EXISTS ph_reports (
			generated_at DateTime64(3),
			report_id String,
			source String,
			mode LowCardinality(String),
			state LowCardinality(String),
			trend LowCardinality(String),
			status LowCardinality(String),
			current_ph Nullable(Float64),
			amplitude Float64,
			oscillations UInt32,
			payload String
		) ENGINE = MergeTree()
		ORDER BY (source, generated_at)
		PARTITION BY toYYYYMM(generated_at)
		TTL toDateTime(generated_at) + INTERVAL 90 DAY
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		PHReadingsTableSQL,
		PHReportsTableSQL,
	}
}
