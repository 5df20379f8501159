package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxkeep/voxkeep/internal/marker"
	"github.com/voxkeep/voxkeep/internal/models"
	"github.com/voxkeep/voxkeep/internal/wav"
)

// TempSuffix marks in-flight temporary audio files in the spool dir
const TempSuffix = ".part"

type jobKind int

const (
	jobBegin jobKind = iota
	jobAppend
	jobRetry
	jobFlush
	jobFinalize
	jobDiscard
	jobCleanup
)

type result struct {
	rec models.CompletedRecording
	err error
}

type job struct {
	kind   jobKind
	id     string
	data   []byte
	marker models.Marker
	maxAge time.Duration
	reply  chan result
}

// openFile is the consumer-side state for one in-flight temp file
type openFile struct {
	marker   models.Marker
	f        *os.File
	buf      []byte
	written  int64
	err      error
	reported bool
}

// Writer owns all durable-storage writes for audio payloads and markers.
// Producers submit jobs over a bounded channel; one consumer goroutine
// processes them strictly in arrival order, so finalize for a session can
// never overtake its appends. Backpressure is the blocking submit.
type Writer struct {
	jobs           chan job
	store          *marker.Store
	spoolDir       string
	format         wav.Format
	flushThreshold int
	log            *zap.Logger

	// onError is called from the consumer goroutine the first time a
	// session hits a disk error. May be nil.
	onError func(id string, err error)

	open map[string]*openFile
}

// Options configures a Writer
type Options struct {
	SpoolDir       string
	Format         wav.Format
	FlushThreshold int
	QueueDepth     int
	OnError        func(id string, err error)
}

// New creates a Writer. Run must be started before jobs are submitted.
func New(store *marker.Store, opts Options, log *zap.Logger) *Writer {
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = 64
	}
	threshold := opts.FlushThreshold
	if threshold <= 0 {
		threshold = 40960
	}
	return &Writer{
		jobs:           make(chan job, depth),
		store:          store,
		spoolDir:       opts.SpoolDir,
		format:         opts.Format,
		flushThreshold: threshold,
		onError:        opts.OnError,
		log:            log,
		open:           make(map[string]*openFile),
	}
}

// TempPath returns the spool path for a session id
func (w *Writer) TempPath(id string) string {
	return filepath.Join(w.spoolDir, id+TempSuffix)
}

// Run consumes jobs until ctx is cancelled. On shutdown any buffered audio
// is flushed to its temp file so the recovery scanner can pick it up; no
// finalize happens here.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case j := <-w.jobs:
			w.handle(j)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case j := <-w.jobs:
			w.handle(j)
		default:
			for id, of := range w.open {
				w.flushLocked(of)
				of.f.Sync()
				of.f.Close()
				w.log.Info("left temp file for recovery",
					zap.String("session", id), zap.Int64("bytes", of.written))
				delete(w.open, id)
			}
			return
		}
	}
}

// Begin durably records the in_progress marker and opens the temp file
// with a placeholder WAV header. Returns once both are on disk.
func (w *Writer) Begin(m models.Marker) error {
	reply := make(chan result, 1)
	w.jobs <- job{kind: jobBegin, id: m.ID, marker: m, reply: reply}
	return (<-reply).err
}

// Append submits captured bytes for the session. Blocks when the queue is
// full; callers own backpressure handling. The slice must not be reused by
// the caller after submission.
func (w *Writer) Append(id string, data []byte) {
	w.jobs <- job{kind: jobAppend, id: id, data: data}
}

// Retry gives a session that previously hit a disk error one more
// chance: the sticky error is cleared, data is appended behind whatever
// is still buffered, and a flush is forced. Returns the new flush
// outcome; on failure the error is sticky again.
func (w *Writer) Retry(id string, data []byte) error {
	reply := make(chan result, 1)
	w.jobs <- job{kind: jobRetry, id: id, data: data, reply: reply}
	return (<-reply).err
}

// Flush forces buffered bytes to the temp file (memory-pressure path)
func (w *Writer) Flush(id string) error {
	reply := make(chan result, 1)
	w.jobs <- job{kind: jobFlush, id: id, reply: reply}
	return (<-reply).err
}

// Finalize commits the session: flush, patch the WAV header, fsync, close,
// atomic rename to the final location, marker to complete. If the rename
// fails the marker stays at finalizing and the temp file is left intact.
func (w *Writer) Finalize(id string) (models.CompletedRecording, error) {
	reply := make(chan result, 1)
	w.jobs <- job{kind: jobFinalize, id: id, reply: reply}
	r := <-reply
	return r.rec, r.err
}

// Discard aborts the session: close and delete the temp file, remove the
// marker. This is the explicit discard required before dropping bytes.
func (w *Writer) Discard(id string) error {
	reply := make(chan result, 1)
	w.jobs <- job{kind: jobDiscard, id: id, reply: reply}
	return (<-reply).err
}

// CleanupStale asynchronously removes markerless temp files older than maxAge
func (w *Writer) CleanupStale(maxAge time.Duration) {
	w.jobs <- job{kind: jobCleanup, maxAge: maxAge}
}

func (w *Writer) handle(j job) {
	switch j.kind {
	case jobBegin:
		j.reply <- result{err: w.begin(j.marker)}
	case jobAppend:
		w.append(j.id, j.data)
	case jobRetry:
		j.reply <- result{err: w.retry(j.id, j.data)}
	case jobFlush:
		j.reply <- result{err: w.flush(j.id)}
	case jobFinalize:
		rec, err := w.finalize(j.id)
		j.reply <- result{rec: rec, err: err}
	case jobDiscard:
		j.reply <- result{err: w.discard(j.id)}
	case jobCleanup:
		w.cleanupStale(j.maxAge)
	}
}

func (w *Writer) begin(m models.Marker) error {
	if _, ok := w.open[m.ID]; ok {
		return fmt.Errorf("session %s already open", m.ID)
	}

	f, err := os.OpenFile(m.TempLocation, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", models.ErrStorageFailure, err)
	}
	if err := wav.WriteHeader(f, w.format, 0); err != nil {
		f.Close()
		os.Remove(m.TempLocation)
		return fmt.Errorf("%w: write header: %v", models.ErrStorageFailure, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(m.TempLocation)
		return fmt.Errorf("%w: sync header: %v", models.ErrStorageFailure, err)
	}

	m.State = models.MarkerInProgress
	if err := w.store.Put(m); err != nil {
		f.Close()
		os.Remove(m.TempLocation)
		return fmt.Errorf("%w: write marker: %v", models.ErrStorageFailure, err)
	}

	w.open[m.ID] = &openFile{marker: m, f: f}
	w.log.Debug("session opened", zap.String("session", m.ID),
		zap.String("temp", m.TempLocation))
	return nil
}

func (w *Writer) append(id string, data []byte) {
	of, ok := w.open[id]
	if !ok {
		// Chunks can legitimately race a discard; drop them.
		w.log.Debug("append for unknown session dropped", zap.String("session", id))
		return
	}
	if of.err != nil {
		// Disk already failed; the supervisor buffers from here on.
		return
	}

	of.buf = append(of.buf, data...)
	if len(of.buf) >= w.flushThreshold {
		w.flushLocked(of)
	}
}

// flushLocked writes the pending buffer to the temp file. Sticky on error.
func (w *Writer) flushLocked(of *openFile) {
	if of.err != nil || len(of.buf) == 0 {
		return
	}
	n, err := of.f.Write(of.buf)
	of.written += int64(n)
	if err != nil {
		of.err = fmt.Errorf("%w: %v", models.ErrStorageFailure, err)
		w.log.Error("temp file write failed",
			zap.String("session", of.marker.ID), zap.Error(err))
		if w.onError != nil && !of.reported {
			of.reported = true
			w.onError(of.marker.ID, of.err)
		}
		return
	}
	of.buf = of.buf[:0]
}

func (w *Writer) retry(id string, data []byte) error {
	of, ok := w.open[id]
	if !ok {
		return models.ErrInvalidSession
	}
	of.err = nil
	of.reported = false
	of.buf = append(of.buf, data...)
	w.flushLocked(of)
	return of.err
}

func (w *Writer) flush(id string) error {
	of, ok := w.open[id]
	if !ok {
		return models.ErrInvalidSession
	}
	w.flushLocked(of)
	return of.err
}

func (w *Writer) finalize(id string) (models.CompletedRecording, error) {
	var rec models.CompletedRecording

	of, ok := w.open[id]
	if !ok {
		return rec, models.ErrInvalidSession
	}

	w.flushLocked(of)
	if of.err != nil {
		return rec, of.err
	}

	m := of.marker
	m.State = models.MarkerFinalizing
	if err := w.store.Put(m); err != nil {
		return rec, fmt.Errorf("%w: marker finalizing: %v", models.ErrStorageFailure, err)
	}
	of.marker = m

	payload, err := wav.PatchSizes(of.f)
	if err != nil {
		return rec, fmt.Errorf("%w: patch header: %v", models.ErrStorageFailure, err)
	}
	if err := of.f.Sync(); err != nil {
		return rec, fmt.Errorf("%w: sync: %v", models.ErrStorageFailure, err)
	}
	if err := of.f.Close(); err != nil {
		return rec, fmt.Errorf("%w: close: %v", models.ErrStorageFailure, err)
	}

	if err := os.Rename(m.TempLocation, m.FinalLocation); err != nil {
		// Marker stays at finalizing; temp is intact for recovery.
		return rec, fmt.Errorf("%w: rename: %v", models.ErrStorageFailure, err)
	}

	m.State = models.MarkerComplete
	if err := w.store.Put(m); err != nil {
		// Final file exists with a finalizing marker; the recovery
		// scanner completes this on next start.
		return rec, fmt.Errorf("%w: marker complete: %v", models.ErrStorageFailure, err)
	}

	delete(w.open, id)
	w.log.Info("recording committed", zap.String("session", id),
		zap.String("file", m.FinalLocation), zap.Int64("bytes", payload))

	return models.CompletedRecording{
		ID:            id,
		Duration:      w.format.Duration(payload),
		FinalLocation: m.FinalLocation,
		Bytes:         payload,
	}, nil
}

func (w *Writer) discard(id string) error {
	of, ok := w.open[id]
	if !ok {
		return models.ErrInvalidSession
	}

	of.f.Close()
	os.Remove(of.marker.TempLocation)
	if err := w.store.Remove(id); err != nil {
		return err
	}
	delete(w.open, id)
	w.log.Info("session discarded", zap.String("session", id))
	return nil
}

func (w *Writer) cleanupStale(maxAge time.Duration) {
	entries, err := os.ReadDir(w.spoolDir)
	if err != nil {
		w.log.Warn("stale cleanup: read spool dir", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, TempSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, TempSuffix)
		if _, ok := w.open[id]; ok {
			continue
		}
		if _, err := w.store.Get(id); err == nil {
			// Has a marker; recovery owns it.
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(w.spoolDir, name)
		if err := os.Remove(path); err != nil {
			w.log.Warn("stale cleanup: remove", zap.String("file", path), zap.Error(err))
			continue
		}
		w.log.Info("removed stale temp file", zap.String("file", path))
	}
}
