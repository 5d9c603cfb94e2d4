package database

// SQL schemas for all ClickHouse tables

const (
	// SettingsTableSQL keeps the host adjustable settings; the newest row per id wins
	SettingsTableSQL = `
		CREATE TABLE IF NOT EXISTS bridge_settings (
			id String,
			scan_interval_seconds UInt32,
			debug_mode UInt8,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY id
	`

	// PollCyclesTableSQL logs the outcome of every location cycle (no values)
	PollCyclesTableSQL = `
		CREATE TABLE IF NOT EXISTS poll_cycles (
			timestamp DateTime64(3),
			poll_id String,
			location_id UInt32,
			kind LowCardinality(String),
			outcome LowCardinality(String),
			attempts UInt8,
			duration_ms UInt32,
			stale UInt8
		) ENGINE = MergeTree()
		ORDER BY (location_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
		TTL toDateTime(timestamp) + INTERVAL 90 DAY
	`
)

// AllTables returns all table creation statements
func AllTables() []string {
	return []string{
		SettingsTableSQL,
		PollCyclesTableSQL,
	}
}
