// Package history persists execution records and computes usage
// statistics over them.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/fsutil"
)

// JSONLRecorder appends records to date-partitioned JSON Lines files,
// one file per UTC day.
type JSONLRecorder struct {
	dir string
	mu  sync.Mutex
}

// NewJSONLRecorder returns a recorder writing under dir.
func NewJSONLRecorder(dir string) (*JSONLRecorder, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &JSONLRecorder{dir: dir}, nil
}

// Append implements core.Recorder. Writes go through O_APPEND under a
// mutex so concurrent runs never interleave lines.
func (r *JSONLRecorder) Append(ctx context.Context, rec *core.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, rec.StartedAt.UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return f.Sync()
}

// List implements core.Recorder.
func (r *JSONLRecorder) List(ctx context.Context, limit int) ([]*core.Record, error) {
	return r.list(ctx, "", limit)
}

// ListByWorkflow implements core.Recorder.
func (r *JSONLRecorder) ListByWorkflow(ctx context.Context, name string, limit int) ([]*core.Record, error) {
	return r.list(ctx, name, limit)
}

func (r *JSONLRecorder) list(ctx context.Context, workflow string, limit int) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".jsonl" {
			files = append(files, e.Name())
		}
	}
	// File names are dates, so lexical order is chronological. Walk
	// newest files first.
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	var out []*core.Record
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := r.readFile(filepath.Join(r.dir, name))
		if err != nil {
			return nil, err
		}
		// Within a file, later lines are newer.
		for i := len(recs) - 1; i >= 0; i-- {
			rec := recs[i]
			if workflow != "" && rec.WorkflowName != workflow {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (r *JSONLRecorder) readFile(path string) ([]*core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	var recs []*core.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec core.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn or corrupt line must not poison the rest of the
			// file.
			continue
		}
		recs = append(recs, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return recs, nil
}

// Close implements core.Recorder.
func (r *JSONLRecorder) Close() error { return nil }
