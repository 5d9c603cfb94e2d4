package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
	"loggamera-bridge/internal/retry"
)

const settingsID = "bridge"

type ClickHouseDB struct {
	conn   driver.Conn
	logger *slog.Logger
}

// Options for NewClickHouseDB
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	// Connect is retried under this policy; the database often starts after the bridge
	Retry  retry.Policy
	Logger *slog.Logger
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, opts Options) (*ClickHouseDB, error) {
	logger := logging.Component(opts.Logger, "ClickHouse")

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

	err = opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := conn.Ping(ctx); err != nil {
			logger.Warn("ping failed", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("connected", "addr", opts.Addr)

	db := &ClickHouseDB{conn: conn, logger: logger}

	// Initialize schema
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

	db.logger.Info("schema initialized")
	return nil
}

// Load returns the persisted settings; ok is false when nothing was saved yet
func (db *ClickHouseDB) Load(ctx context.Context) (models.Settings, bool, error) {
	query := `
		SELECT scan_interval_seconds, debug_mode
		FROM bridge_settings FINAL
		WHERE id = ?
		LIMIT 1
	`

	var (
		seconds uint32
		debug   uint8
	)
	err := db.conn.QueryRow(ctx, query, settingsID).Scan(&seconds, &debug)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, false, nil
	}
	if err != nil {
		return models.Settings{}, false, fmt.Errorf("failed to load settings: %w", err)
	}

	return models.Settings{
		ScanInterval: time.Duration(seconds) * time.Second,
		DebugMode:    debug == 1,
	}, true, nil
}

// Save persists the settings
func (db *ClickHouseDB) Save(ctx context.Context, s models.Settings) error {
	query := `
		INSERT INTO bridge_settings (id, scan_interval_seconds, debug_mode, updated_at)
		VALUES (?, ?, ?, ?)
	`

	var debug uint8
	if s.DebugMode {
		debug = 1
	}
	err := db.conn.Exec(ctx, query,
		settingsID,
		uint32(s.ScanInterval.Seconds()),
		debug,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// RecordCycles appends the outcome of every cycle of a poll in one batch
func (db *ClickHouseDB) RecordCycles(ctx context.Context, records []models.CycleRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := db.conn.PrepareBatch(ctx, `
		INSERT INTO poll_cycles (timestamp, poll_id, location_id, kind, outcome, attempts, duration_ms, stale)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cycle batch: %w", err)
	}

	for _, r := range records {
		var stale uint8
		if r.Stale {
			stale = 1
		}
		err := batch.Append(
			r.Timestamp,
			r.PollID,
			uint32(r.LocationID),
			r.Kind,
			r.Outcome,
			uint8(r.Attempts),
			uint32(r.Duration.Milliseconds()),
			stale,
		)
		if err != nil {
			if abortErr := batch.Abort(); abortErr != nil {
				db.logger.Warn("failed to abort cycle batch", "error", abortErr)
			}
			return fmt.Errorf("failed to append cycle record: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert cycle records: %w", err)
	}
	return nil
}

// OutcomeCounts returns how often each outcome occurred for a location since a point in time
func (db *ClickHouseDB) OutcomeCounts(ctx context.Context, locationID int, since time.Time) (map[string]uint64, error) {
	query := `
		SELECT outcome, count() AS n
		FROM poll_cycles
		WHERE location_id = ? AND timestamp >= ?
		GROUP BY outcome
	`

	rows, err := db.conn.Query(ctx, query, uint32(locationID), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var (
			outcome string
			n       uint64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		db.logger.Info("connection closed")
	}
	return nil
}
