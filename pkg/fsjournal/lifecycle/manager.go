// Package lifecycle performs the directory and file operations that
// fsjournal journals: create a directory, fill it with files, list them,
// delete them and remove the directory again.
//
// Each completed step is reported to an Auditor. Audit failures are logged
// and never fail the step. Batch operations are best-effort: the first
// error aborts the remaining work and nothing already done is undone.
package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/logging"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/space"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/types"
	"github.com/spf13/afero"
)

// Audit descriptions written for each completed step.
const (
	DescDirectoryCreated = "directory created"
	DescFileCreated      = "file created"
	DescFilesListed      = "files listed"
	DescFileDeleted      = "file deleted"
	DescDirectoryDeleted = "directory deleted"
)

// Defaults applied by New.
const (
	DefaultDirPerm    os.FileMode = 0o755
	DefaultFileMode   os.FileMode = 0o644
	DefaultFilePrefix             = "file"
)

// errNotEmpty is the cause reported when DeleteDirectory finds entries.
var errNotEmpty = errors.New("directory not empty")

// Auditor receives one record per completed step. *audit.Log satisfies it.
type Auditor interface {
	Record(description string) error
	RecordWithSize(description string, size int64) error
}

// Manager runs lifecycle operations against a filesystem.
// It is not safe for concurrent use against the same directory.
type Manager struct {
	fs       afero.Fs
	audit    Auditor
	dirPerm  os.FileMode
	fileMode os.FileMode
	prefix   string
	log      *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPerm sets the permission bits for created directories.
func WithPerm(perm os.FileMode) Option {
	return func(m *Manager) {
		m.dirPerm = perm
	}
}

// WithFileMode sets the permission bits for created files.
func WithFileMode(mode os.FileMode) Option {
	return func(m *Manager) {
		m.fileMode = mode
	}
}

// WithPrefix sets the file name prefix used by CreateFiles.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a Manager operating on fsys and auditing to rec.
// A nil fsys means the OS filesystem; a nil rec disables auditing.
func New(fsys afero.Fs, rec Auditor, opts ...Option) *Manager {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if rec == nil {
		rec = nopAuditor{}
	}

	m := &Manager{
		fs:       fsys,
		audit:    rec,
		dirPerm:  DefaultDirPerm,
		fileMode: DefaultFileMode,
		prefix:   DefaultFilePrefix,
		log:      logging.Get("lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fs returns the filesystem the manager operates on.
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// FileName returns the name CreateFiles uses for the i-th file (1-based).
func (m *Manager) FileName(i int) string {
	return fmt.Sprintf("%s%d.txt", m.prefix, i)
}

// CreateDirectory creates name with the configured permissions. It fails
// if the path already exists.
func (m *Manager) CreateDirectory(name string) error {
	if err := m.fs.Mkdir(name, m.dirPerm); err != nil {
		return opErr("CreateDirectory", name, ErrDirectoryCreate, err)
	}

	m.log.Debug("directory created", "path", name)
	m.record(DescDirectoryCreated)
	return nil
}

// CreateFiles creates count files in dir, each holding payload followed by
// a newline. It stops at the first failure and returns the files created
// before it alongside the error.
func (m *Manager) CreateFiles(dir string, count int, payload string) ([]types.FileEntry, error) {
	if count < 0 {
		return nil, opErr("CreateFiles", dir, ErrFileCreate, fmt.Errorf("negative file count %d", count))
	}

	created := make([]types.FileEntry, 0, count)
	for i := 1; i <= count; i++ {
		name := m.FileName(i)
		path := filepath.Join(dir, name)

		size, err := m.writeFile(path, payload)
		if err != nil {
			return created, err
		}

		entry := types.FileEntry{Name: name, Path: path, Size: size}
		created = append(created, entry)

		m.log.Debug("file created", "path", path, "size", size)
		m.recordWithSize(DescFileCreated+": "+path, size)
	}

	return created, nil
}

// writeFile creates path, writes payload and a newline, closes it and
// returns the resulting size.
func (m *Manager) writeFile(path, payload string) (int64, error) {
	f, err := m.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, m.fileMode)
	if err != nil {
		return 0, opErr("CreateFiles", path, ErrFileCreate, err)
	}

	if _, err := io.WriteString(f, payload+"\n"); err != nil {
		_ = f.Close()
		return 0, opErr("CreateFiles", path, ErrFileWrite, err)
	}
	if err := f.Close(); err != nil {
		return 0, opErr("CreateFiles", path, ErrFileWrite, err)
	}

	return m.sizeOf(path), nil
}

// ListFiles returns the regular files in dir in enumeration order.
// Callers must not rely on any particular order.
func (m *Manager) ListFiles(dir string) ([]types.FileEntry, error) {
	infos, err := space.RegularFiles(m.fs, dir)
	if err != nil {
		return nil, opErr("ListFiles", dir, ErrDirectoryOpen, err)
	}

	entries := make([]types.FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, types.FileEntry{
			Name: info.Name(),
			Path: filepath.Join(dir, info.Name()),
			Size: info.Size(),
		})
	}

	m.log.Debug("files listed", "path", dir, "count", len(entries))
	m.record(DescFilesListed)
	return entries, nil
}

// DeleteFiles removes every regular file in dir, auditing each with its
// size just before removal. It stops at the first removal failure and
// returns the files deleted before it alongside the error.
func (m *Manager) DeleteFiles(dir string) ([]types.FileEntry, error) {
	infos, err := space.RegularFiles(m.fs, dir)
	if err != nil {
		return nil, opErr("DeleteFiles", dir, ErrDirectoryOpen, err)
	}

	deleted := make([]types.FileEntry, 0, len(infos))
	for _, info := range infos {
		path := filepath.Join(dir, info.Name())
		size := m.sizeOf(path)

		if err := m.fs.Remove(path); err != nil {
			return deleted, opErr("DeleteFiles", path, ErrFileDelete, err)
		}

		deleted = append(deleted, types.FileEntry{Name: info.Name(), Path: path, Size: size})

		m.log.Debug("file deleted", "path", path, "size", size)
		m.recordWithSize(DescFileDeleted+": "+path, size)
	}

	return deleted, nil
}

// DeleteDirectory removes dir, which must be an empty directory.
func (m *Manager) DeleteDirectory(dir string) error {
	info, err := m.fs.Stat(dir)
	if err != nil {
		return opErr("DeleteDirectory", dir, ErrDirectoryDelete, err)
	}
	if !info.IsDir() {
		return opErr("DeleteDirectory", dir, ErrDirectoryDelete, errors.New("not a directory"))
	}

	empty, err := m.isEmpty(dir)
	if err != nil {
		return opErr("DeleteDirectory", dir, ErrDirectoryDelete, err)
	}
	if !empty {
		return opErr("DeleteDirectory", dir, ErrDirectoryDelete, errNotEmpty)
	}

	if err := m.fs.Remove(dir); err != nil {
		return opErr("DeleteDirectory", dir, ErrDirectoryDelete, err)
	}

	m.log.Debug("directory deleted", "path", dir)
	m.record(DescDirectoryDeleted)
	return nil
}

// isEmpty reports whether dir has no entries at all.
func (m *Manager) isEmpty(dir string) (bool, error) {
	f, err := m.fs.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	if len(names) > 0 {
		return false, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return true, nil
}

// sizeOf stats path; a failed stat reports zero bytes.
func (m *Manager) sizeOf(path string) int64 {
	info, err := m.fs.Stat(path)
	if err != nil {
		m.log.Debug("stat failed", "path", path, "error", err)
		return 0
	}
	return info.Size()
}

func (m *Manager) record(description string) {
	if err := m.audit.Record(description); err != nil {
		m.log.Warn("audit write failed", "description", description, "error", err)
	}
}

func (m *Manager) recordWithSize(description string, size int64) {
	if err := m.audit.RecordWithSize(description, size); err != nil {
		m.log.Warn("audit write failed", "description", description, "error", err)
	}
}

type nopAuditor struct{}

func (nopAuditor) Record(string) error                { return nil }
func (nopAuditor) RecordWithSize(string, int64) error { return nil }
