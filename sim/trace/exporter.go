package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Exporter appends records to per-stream CSV files under a traces directory.
// A file is created lazily on the first record of its stream, with the
// stream's header as the first row, and reused for the rest of the run.
// Rows are never rewritten or deleted.
//
// Exporter is not safe for concurrent use; the single-threaded event loop
// owns it.
type Exporter struct {
	dir   string
	files map[string]*csvStream
}

type csvStream struct {
	f *os.File
	w *csv.Writer
}

// NewExporter creates the traces directory (if needed) and an Exporter
// writing into it. A directory that cannot be created is a fatal condition
// for the run: no session can proceed without its output sink.
func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating traces directory %s: %w", dir, err)
	}
	return &Exporter{dir: dir, files: make(map[string]*csvStream)}, nil
}

// Dir returns the traces directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Append writes one record to its stream, creating the file and writing the
// header on first use. Errors creating an output artifact are returned to
// the caller, which must treat them as fatal.
func (e *Exporter) Append(r Record) error {
	name := r.File()
	s, ok := e.files[name]
	if !ok {
		path := filepath.Join(e.dir, name+".csv")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating trace file %s: %w", path, err)
		}
		s = &csvStream{f: f, w: csv.NewWriter(f)}
		e.files[name] = s
		if err := s.w.Write(r.Header()); err != nil {
			return fmt.Errorf("writing header to %s: %w", path, err)
		}
	}
	if err := s.w.Write(r.Row()); err != nil {
		return fmt.Errorf("appending to trace file %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes every open stream. The first error encountered
// is returned; all streams are closed regardless.
func (e *Exporter) Close() error {
	var firstErr error
	for name, s := range e.files {
		s.w.Flush()
		if err := s.w.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flushing trace file %s: %w", name, err)
		}
		if err := s.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing trace file %s: %w", name, err)
		}
	}
	return firstErr
}
