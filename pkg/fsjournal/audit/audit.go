package audit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrLogIO is returned when the audit log cannot be opened, written or read.
var ErrLogIO = errors.New("audit log I/O failed")

// Log appends records to an audit file. Each call opens the file in append
// mode, writes one line and closes it again; no handle is held between calls.
type Log struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates a Log writing to path on fsys.
// The file is not created until the first record is written.
func New(fsys afero.Fs, path string, opts ...Option) (*Log, error) {
	if path == "" {
		return nil, errors.New("audit log path cannot be empty")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	l := &Log{fs: fsys, path: path, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the audit file path.
func (l *Log) Path() string {
	return l.path
}

// EnsureDir creates the parent directory of the audit file if needed.
func (l *Log) EnsureDir() error {
	dir := filepath.Dir(l.path)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrLogIO, dir, err)
	}
	return nil
}

// Record appends an unsized record for description.
func (l *Log) Record(description string) error {
	return l.append(Record{Timestamp: l.now(), Description: description})
}

// RecordWithSize appends a record for description annotated with size bytes.
func (l *Log) RecordWithSize(description string, size int64) error {
	return l.append(Record{Timestamp: l.now(), Description: description, Size: &size})
}

// append writes one record as a single line.
func (l *Log) append(rec Record) error {
	if strings.ContainsAny(rec.Description, "\r\n") {
		return fmt.Errorf("%w: description must be a single line: %q", ErrLogIO, rec.Description)
	}

	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrLogIO, l.path, err)
	}

	if _, err := f.Write([]byte(rec.String() + "\n")); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrLogIO, l.path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrLogIO, l.path, err)
	}
	return nil
}

// Tail returns the last limit records of the log, oldest first.
// If limit is 0 or negative, all records are returned. Lines that cannot be
// parsed are skipped. A missing log yields an empty slice.
func (l *Log) Tail(limit int) ([]Record, error) {
	f, err := l.fs.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("%w: opening %s: %w", ErrLogIO, l.path, err)
	}
	defer f.Close()

	records := []Record{}
	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			if rec, err := ParseLine(line); err == nil {
				records = append(records, rec)
				if limit > 0 && len(records) > limit {
					records = records[1:]
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return records, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrLogIO, l.path, readErr)
		}
	}
}
