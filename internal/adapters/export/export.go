// Package export writes archived snapshots to disk as zip files, off the
// request path.
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/okian/liveboard/internal/adapters/mq/queue"
	"github.com/okian/liveboard/internal/adapters/mq/worker"
	"github.com/okian/liveboard/internal/domain/dedupe"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// EntryName is the file inside every export archive.
const EntryName = "leaderboard.json"

// FileName returns the archive name for eventID.
func FileName(eventID int64) string {
	return "event_" + strconv.FormatInt(eventID, 10) + ".zip"
}

// Exporter schedules snapshots for writing. At most one job per event file
// waits in the queue; a snapshot arriving while its file is still pending
// replaces the pending one, so the worker writes only the newest.
type Exporter struct {
	queue  queue.Queue
	seen   dedupe.Deduper
	logger logger.Logger

	mu     sync.Mutex
	latest map[int64]model.EventHistory
}

// NewExporter constructs an Exporter feeding q.
func NewExporter(q queue.Queue, seen dedupe.Deduper, l logger.Logger) *Exporter {
	if l == nil {
		l = logger.Nop()
	}
	return &Exporter{queue: q, seen: seen, logger: l, latest: make(map[int64]model.EventHistory)}
}

// Export enqueues h unless a job for the same event file is already pending.
func (e *Exporter) Export(ctx context.Context, h model.EventHistory) error { //nolint:gocritic // hugeParam: matches archive.Exporter
	key := FileName(h.EventID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.latest[h.EventID] = h
	if e.seen.SeenAndRecord(ctx, key) {
		metrics.RecordExportDuplicate()
		e.logger.Debug(ctx, "export coalesced",
			logger.Int64("event_id", h.EventID),
			logger.String("archive_id", h.ArchiveID),
		)
		return nil
	}
	if err := e.queue.Enqueue(ctx, h); err != nil {
		e.seen.Unrecord(ctx, key)
		delete(e.latest, h.EventID)
		return fmt.Errorf("enqueue export %s: %w", h.ArchiveID, err)
	}
	return nil
}

// Pending reports how many event files wait to be written.
func (e *Exporter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.latest)
}

// Handler wraps next so that each job writes the newest snapshot of its
// event and releases the event file for the next Export.
func (e *Exporter) Handler(next worker.Handler) worker.Handler {
	return worker.HandlerFunc(func(ctx context.Context, j queue.Job) error {
		e.mu.Lock()
		if h, ok := e.latest[j.EventID]; ok {
			j = h
			delete(e.latest, j.EventID)
		}
		e.seen.Unrecord(ctx, FileName(j.EventID))
		e.mu.Unlock()

		return next.Handle(ctx, j)
	})
}

// ZipWriter writes one zip per event into a directory. A later archival of
// the same event replaces the file.
type ZipWriter struct {
	dir    string
	logger logger.Logger
}

// NewZipWriter creates dir if needed.
func NewZipWriter(dir string, l logger.Logger) (*ZipWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ZipWriter{dir: dir, logger: l}, nil
}

// Handle writes j atomically: to a temp file first, then renamed in place.
func (w *ZipWriter) Handle(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: matches worker.Handler
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.dir, ".export-*.zip")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := writeZip(tmp, j.Results); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}

	dst := filepath.Join(w.dir, FileName(j.EventID))
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("publish export: %w", err)
	}

	metrics.RecordExportWritten()
	w.logger.Info(ctx, "export written",
		logger.Int64("event_id", j.EventID),
		logger.String("archive_id", j.ArchiveID),
		logger.String("path", dst),
	)
	return nil
}

func writeZip(f *os.File, results []model.HistoryResult) error {
	if results == nil {
		results = []model.HistoryResult{}
	}
	zw := zip.NewWriter(f)
	entry, err := zw.Create(EntryName)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if err := json.NewEncoder(entry).Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}
