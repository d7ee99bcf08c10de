// Package journal implements the append-only operation journal.
//
// The journal stores one plain-text description per line, written right
// after the operation it describes has completed. At startup the whole
// journal is replayed into the audit log. By default there is no completion
// checkpoint: every line ever appended is replayed on every start, so the
// audit log gains one duplicate per entry per run. Passing WithCheckpoint to
// Replay switches to resuming from the last durably committed offset.
//
// Basic usage:
//
//	j, err := journal.New(afero.NewOsFs(), "journal.txt")
//	if err != nil {
//	    return err
//	}
//	res, err := j.Replay(auditLog)
//	...
//	_ = j.RecordIntent("directory created")
package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// ErrJournalIO is returned when the journal file cannot be opened, written
// or read.
var ErrJournalIO = errors.New("journal I/O failed")

// Entry is one stored journal line.
type Entry struct {
	// Description is the line text without its trailing newline.
	Description string

	// Offset is the byte offset where the line starts.
	Offset int64

	// Next is the byte offset just past the line's newline.
	Next int64
}

// Journal is an append-only file of operation descriptions. Like the audit
// log it holds no open handle between calls.
type Journal struct {
	fs   afero.Fs
	path string
}

// New creates a Journal stored at path on fsys.
func New(fsys afero.Fs, path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path cannot be empty")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Journal{fs: fsys, path: path}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// RecordIntent appends description as a new line.
func (j *Journal) RecordIntent(description string) error {
	if strings.ContainsAny(description, "\r\n") {
		return fmt.Errorf("%w: description must be a single line: %q", ErrJournalIO, description)
	}

	f, err := j.fs.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrJournalIO, j.path, err)
	}

	if _, err := f.Write([]byte(description + "\n")); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrJournalIO, j.path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrJournalIO, j.path, err)
	}
	return nil
}

// Entries returns a lazy sequence over every stored entry, oldest first.
// The file is opened when iteration starts and closed when it stops.
func (j *Journal) Entries() iter.Seq2[Entry, error] {
	return j.EntriesFrom(0)
}

// EntriesFrom is like Entries but starts reading at byte offset.
// Offset should be a value previously taken from Entry.Next.
func (j *Journal) EntriesFrom(offset int64) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		f, err := j.fs.Open(j.path)
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: opening %s: %w", ErrJournalIO, j.path, err))
			return
		}
		defer f.Close()

		if offset > 0 {
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				yield(Entry{}, fmt.Errorf("%w: seeking %s: %w", ErrJournalIO, j.path, err))
				return
			}
		}

		r := bufio.NewReader(f)
		pos := offset
		for {
			raw, err := r.ReadString('\n')
			if len(raw) > 0 {
				entry := Entry{
					Description: strings.TrimRight(raw, "\r\n"),
					Offset:      pos,
					Next:        pos + int64(len(raw)),
				}
				pos = entry.Next
				if !yield(entry, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Entry{}, fmt.Errorf("%w: reading %s: %w", ErrJournalIO, j.path, err))
				return
			}
		}
	}
}

// followsNewline reports whether the byte before offset is a newline, i.e.
// whether offset is the start of a line.
func (j *Journal) followsNewline(offset int64) (bool, error) {
	f, err := j.fs.Open(j.path)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s: %w", ErrJournalIO, j.path, err)
	}
	defer f.Close()

	b := make([]byte, 1)
	if _, err := f.ReadAt(b, offset-1); err != nil {
		return false, fmt.Errorf("%w: reading %s: %w", ErrJournalIO, j.path, err)
	}
	return b[0] == '\n', nil
}

// Size returns the journal length in bytes. A missing journal has size 0.
func (j *Journal) Size() (int64, error) {
	info, err := j.fs.Stat(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: stat %s: %w", ErrJournalIO, j.path, err)
	}
	return info.Size(), nil
}

// Reset truncates the journal to zero length, creating it if necessary.
// It is the only operation that removes entries.
func (j *Journal) Reset() error {
	f, err := j.fs.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: truncating %s: %w", ErrJournalIO, j.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrJournalIO, j.path, err)
	}
	return nil
}
