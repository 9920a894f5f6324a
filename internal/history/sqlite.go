package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/fsutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	workflow_name TEXT NOT NULL DEFAULT '',
	started_at    TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	payload       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_workflow ON records(workflow_name, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_started ON records(started_at DESC);
`

// SQLiteRecorder stores records in a single SQLite database. Suited to
// larger histories where scanning flat files gets slow.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (creating if needed) the database at path.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// modernc sqlite is single-writer; one connection avoids lock
	// contention entirely.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

// Append implements core.Recorder.
func (r *SQLiteRecorder) Append(ctx context.Context, rec *core.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	// Fixed-width timestamps keep ORDER BY on the text column correct.
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (id, workflow_name, started_at, outcome, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.WorkflowName, rec.StartedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"), string(rec.Outcome), string(payload))
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// List implements core.Recorder.
func (r *SQLiteRecorder) List(ctx context.Context, limit int) ([]*core.Record, error) {
	return r.query(ctx,
		`SELECT payload FROM records ORDER BY started_at DESC`, nil, limit)
}

// ListByWorkflow implements core.Recorder.
func (r *SQLiteRecorder) ListByWorkflow(ctx context.Context, name string, limit int) ([]*core.Record, error) {
	return r.query(ctx,
		`SELECT payload FROM records WHERE workflow_name = ? ORDER BY started_at DESC`, []any{name}, limit)
}

func (r *SQLiteRecorder) query(ctx context.Context, q string, args []any, limit int) ([]*core.Record, error) {
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []*core.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var rec core.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close implements core.Recorder.
func (r *SQLiteRecorder) Close() error { return r.db.Close() }
