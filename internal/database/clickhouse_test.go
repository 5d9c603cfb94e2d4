package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

// fakeConn implements the calls the store makes; anything else panics on the nil embed.
type fakeConn struct {
	driver.Conn

	row      *fakeRow
	execArgs []any
	batch    *fakeBatch
}

func (c *fakeConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return c.row
}

func (c *fakeConn) Exec(ctx context.Context, query string, args ...any) error {
	c.execArgs = args
	return nil
}

func (c *fakeConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	return c.batch, nil
}

type fakeRow struct {
	driver.Row

	seconds uint32
	debug   uint8
	err     error
}

func (r *fakeRow) Err() error { return r.err }

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*uint32) = r.seconds
	*dest[1].(*uint8) = r.debug
	return nil
}

type fakeBatch struct {
	driver.Batch

	appended  [][]any
	failAfter int
	aborted   bool
	sent      bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.failAfter > 0 && len(b.appended) >= b.failAfter {
		return errors.New("column type mismatch")
	}
	b.appended = append(b.appended, v)
	return nil
}

func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return nil
}

func newTestDB(conn *fakeConn) *ClickHouseDB {
	return &ClickHouseDB{conn: conn, logger: logging.Discard()}
}

func TestLoadNothingSaved(t *testing.T) {
	db := newTestDB(&fakeConn{row: &fakeRow{err: sql.ErrNoRows}})
	_, ok, err := db.Load(context.Background())
	if err != nil || ok {
		t.Fatalf("expected not found without error, got ok=%v err=%v", ok, err)
	}
}

func TestLoadSettings(t *testing.T) {
	db := newTestDB(&fakeConn{row: &fakeRow{seconds: 900, debug: 1}})
	s, ok, err := db.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected settings, got ok=%v err=%v", ok, err)
	}
	if s.ScanInterval != 15*time.Minute || !s.DebugMode {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestLoadError(t *testing.T) {
	db := newTestDB(&fakeConn{row: &fakeRow{err: errors.New("connection reset")}})
	if _, _, err := db.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSaveConvertsSettings(t *testing.T) {
	conn := &fakeConn{}
	db := newTestDB(conn)
	if err := db.Save(context.Background(), models.Settings{ScanInterval: 10 * time.Minute, DebugMode: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.execArgs) != 4 {
		t.Fatalf("expected 4 args, got %v", conn.execArgs)
	}
	if conn.execArgs[0] != settingsID || conn.execArgs[1] != uint32(600) || conn.execArgs[2] != uint8(1) {
		t.Fatalf("unexpected args %v", conn.execArgs)
	}
}

func cycleRecords() []models.CycleRecord {
	return []models.CycleRecord{
		{PollID: "p", LocationID: 22, Kind: "temperature", Outcome: "success", Attempts: 1, Duration: 1500 * time.Millisecond},
		{PollID: "p", LocationID: 21, Kind: "temperature", Outcome: "timeout", Attempts: 3, Stale: true},
	}
}

func TestRecordCycles(t *testing.T) {
	batch := &fakeBatch{}
	db := newTestDB(&fakeConn{batch: batch})
	if err := db.RecordCycles(context.Background(), cycleRecords()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !batch.sent || batch.aborted || len(batch.appended) != 2 {
		t.Fatalf("unexpected batch state %+v", batch)
	}
	if batch.appended[0][6] != uint32(1500) || batch.appended[1][7] != uint8(1) {
		t.Fatalf("unexpected row conversion %v", batch.appended)
	}
}

func TestRecordCyclesAbortsOnAppendFailure(t *testing.T) {
	batch := &fakeBatch{failAfter: 1}
	db := newTestDB(&fakeConn{batch: batch})
	if err := db.RecordCycles(context.Background(), cycleRecords()); err == nil {
		t.Fatalf("expected append error")
	}
	if !batch.aborted || batch.sent {
		t.Fatalf("failed batch must be aborted and not sent: %+v", batch)
	}
}

func TestRecordCyclesEmpty(t *testing.T) {
	db := newTestDB(&fakeConn{})
	if err := db.RecordCycles(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
