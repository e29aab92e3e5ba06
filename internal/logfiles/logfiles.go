// Package logfiles routes process logs into a per-day file under the app's
// log directory and compresses files from previous days in place.
package logfiles

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const dateLayout = "2006-01-02"

// Writer appends to ./log/<appName>/YYYY-MM-DD.log, rolling to a new file
// when the date changes, and tees every line to stderr.
type Writer struct {
	mu   sync.Mutex
	dir  string
	file *os.File
	day  string

	now func() time.Time
}

// NewWriter creates the log directory and opens today's file.
func NewWriter(baseDir, appName string) (*Writer, error) {
	dir := filepath.Join(baseDir, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logfiles: create %s: %w", dir, err)
	}
	w := &Writer{dir: dir, now: time.Now}
	if err := w.roll(w.now()); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends to today's file and stderr. A failed file write still
// reaches stderr; losing the console copy is worse than a short file.
func (w *Writer) Write(p []byte) (int, error) {
	os.Stderr.Write(p)

	w.mu.Lock()
	defer w.mu.Unlock()
	if day := w.now().Format(dateLayout); day != w.day {
		if err := w.roll(w.now()); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

// roll closes the current file and opens the one for t's date.
// Callers hold w.mu (or have exclusive access during construction).
func (w *Writer) roll(t time.Time) error {
	if w.file != nil {
		w.file.Close()
	}
	day := t.Format(dateLayout)
	path := filepath.Join(w.dir, day+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logfiles: open %s: %w", path, err)
	}
	w.file = f
	w.day = day
	return nil
}

// Dir returns the directory holding this writer's files.
func (w *Writer) Dir() string { return w.dir }

// Close closes the current file. Writes after Close still reach stderr.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.day = ""
	return err
}

// CompressOld gzips every .log file in dir except today's, removing the
// original after a clean compress. Files already ending in .gz or .zst are
// left alone. Returns the number of files compressed.
func CompressOld(dir string, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("logfiles: read %s: %w", dir, err)
	}
	today := now.Format(dateLayout) + ".log"

	done := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == today {
			continue
		}
		if !strings.HasSuffix(name, ".log") ||
			strings.HasSuffix(name, ".gz") || strings.HasSuffix(name, ".zst") {
			continue
		}
		if err := compressFile(filepath.Join(dir, name)); err != nil {
			// Keep going; one bad file should not strand the rest.
			log.Printf("[logfiles] compress %s: %v", name, err)
			continue
		}
		done++
	}
	return done, nil
}

func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}
