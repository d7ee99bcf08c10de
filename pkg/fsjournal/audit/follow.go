package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow emits records appended to the log after Follow is called until ctx
// is done. It watches the parent directory so that a log created or reset
// later is still picked up. The log must live on the OS filesystem.
func (l *Log) Follow(ctx context.Context, out chan<- Record) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: creating watcher: %w", ErrLogIO, err)
	}
	defer w.Close()

	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("%w: watching %s: %w", ErrLogIO, dir, err)
	}

	var offset int64
	if info, err := l.fs.Stat(l.path); err == nil {
		offset = info.Size()
	}

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			offset, err = l.drain(ctx, offset, out)
			if err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("%w: watcher: %w", ErrLogIO, err)
		}
	}
}

// drain reads complete lines written since offset and sends them to out.
// It returns the offset just past the last complete line consumed.
func (l *Log) drain(ctx context.Context, offset int64, out chan<- Record) (int64, error) {
	f, err := l.fs.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return offset, fmt.Errorf("%w: opening %s: %w", ErrLogIO, l.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, fmt.Errorf("%w: stat %s: %w", ErrLogIO, l.path, err)
	}
	if info.Size() < offset {
		// Truncated underneath us; start over.
		offset = 0
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("%w: seeking %s: %w", ErrLogIO, l.path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return offset, fmt.Errorf("%w: reading %s: %w", ErrLogIO, l.path, err)
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return offset, nil
		}
		line := data[:idx]
		data = data[idx+1:]
		offset += int64(idx + 1)

		rec, err := ParseLine(string(line))
		if err != nil {
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return offset, nil
		}
	}
}
