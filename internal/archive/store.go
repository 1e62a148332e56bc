package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
	_ "modernc.org/sqlite"

	"runlog/internal/logging"
)

// minFreeBytes is the floor below which opening the archive refuses to risk
// corrupting the spool mid-write.
const minFreeBytes = 32 << 20

// tsLayout keeps every fractional digit so stored timestamps sort lexically
// in chronological order. RFC3339Nano trims trailing zeros and breaks that.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists log records locally, keyed by run identifiers.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open initializes the archive under dir, acquiring the writer lock and
// applying migrations. ReadOnly opens skip the lock so the CLI can read while
// a pipeline ships.
func Open(dir string) (*Store, error) {
	return open(dir, false)
}

// OpenReadOnly opens the archive for queries without taking the writer lock.
func OpenReadOnly(dir string) (*Store, error) {
	return open(dir, true)
}

func open(dir string, readOnly bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive directory: %w", err)
	}
	if err := checkFreeSpace(dir); err != nil && !readOnly {
		return nil, err
	}

	var lock *flock.Flock
	if !readOnly {
		lock = flock.New(filepath.Join(dir, "archive.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire archive lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("archive at %s is already owned by another process", dir)
		}
	}

	dbPath := filepath.Join(dir, "logs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			releaseLock(lock)
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, lock: lock, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		releaseLock(lock)
		return nil, err
	}
	return store, nil
}

func releaseLock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

func checkFreeSpace(dir string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		// Statfs support varies across filesystems; do not fail open on it.
		return nil
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return fmt.Errorf("archive at %s has %d bytes free, below the %d byte floor", dir, free, uint64(minFreeBytes))
	}
	return nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts TEXT NOT NULL,
    level TEXT NOT NULL,
    logger TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL,
    flow_run_id TEXT NOT NULL DEFAULT '',
    flow_run_name TEXT NOT NULL DEFAULT '',
    flow_name TEXT NOT NULL DEFAULT '',
    task_run_id TEXT NOT NULL DEFAULT '',
    task_run_name TEXT NOT NULL DEFAULT '',
    task_name TEXT NOT NULL DEFAULT '',
    fields TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_logs_flow_run ON logs(flow_run_id, ts);
CREATE INDEX IF NOT EXISTS idx_logs_task_run ON logs(task_run_id, ts);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply archive schema: %w", err)
	}
	return nil
}

// Close releases the database and the writer lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	err := s.db.Close()
	releaseLock(s.lock)
	return err
}

// Deliver appends a batch transactionally. Implements shipping.Deliverer.
func (s *Store) Deliver(ctx context.Context, batch []logging.Record) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO logs (ts, level, logger, message, flow_run_id, flow_run_name, flow_name, task_run_id, task_run_name, task_name, fields)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch {
		fields := "{}"
		if len(rec.Fields) > 0 {
			encoded, err := json.Marshal(rec.Fields)
			if err != nil {
				return fmt.Errorf("encode record fields: %w", err)
			}
			fields = string(encoded)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Timestamp.UTC().Format(tsLayout),
			rec.Level, rec.LoggerName, rec.Message,
			rec.FlowRunID, rec.FlowRunName, rec.FlowName,
			rec.TaskRunID, rec.TaskRunName, rec.TaskName,
			fields,
		); err != nil {
			return fmt.Errorf("insert archive record: %w", err)
		}
	}
	return tx.Commit()
}

// FetchRun returns every record attributed to the given run id, as either
// flow or task run, ordered by timestamp.
func (s *Store) FetchRun(ctx context.Context, runID string) ([]logging.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ts, level, logger, message, flow_run_id, flow_run_name, flow_name, task_run_id, task_run_name, task_name, fields
FROM logs
WHERE flow_run_id = ? OR task_run_id = ?
ORDER BY ts, id`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []logging.Record
	for rows.Next() {
		var rec logging.Record
		var ts, fields string
		if err := rows.Scan(&ts, &rec.Level, &rec.LoggerName, &rec.Message,
			&rec.FlowRunID, &rec.FlowRunName, &rec.FlowName,
			&rec.TaskRunID, &rec.TaskRunName, &rec.TaskName, &fields); err != nil {
			return nil, fmt.Errorf("scan archive record: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse archive timestamp %q: %w", ts, err)
		}
		rec.Timestamp = parsed
		if fields != "" && fields != "{}" {
			if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
				return nil, fmt.Errorf("decode record fields: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
