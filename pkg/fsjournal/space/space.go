// Package space computes the disk usage of a managed directory.
//
// The accountant only observes: it opens the directory, sums the sizes of
// its regular-file entries and closes it again. Subdirectories, symlinks and
// special files are not counted and are never followed.
package space

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/types"
	"github.com/spf13/afero"
)

// ErrSpaceIO is returned when a directory cannot be opened or enumerated.
var ErrSpaceIO = errors.New("space accounting failed")

// RegularFiles returns the regular-file entries of dir in the order the
// underlying enumeration yields them. The directory handle is closed before
// returning on every path.
func RegularFiles(fsys afero.Fs, dir string) ([]os.FileInfo, error) {
	f, err := fsys.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, err
	}

	regular := infos[:0]
	for _, info := range infos {
		if info.Mode().IsRegular() {
			regular = append(regular, info)
		}
	}
	return regular, nil
}

// DirectorySize returns the total size in bytes of the regular files
// directly inside dir.
func DirectorySize(fsys afero.Fs, dir string) (int64, error) {
	infos, err := RegularFiles(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSpaceIO, dir, err)
	}

	var total int64
	for _, info := range infos {
		total += info.Size()
	}
	return total, nil
}

// Sample measures dir and returns the measurement as a SizeSample.
func Sample(fsys afero.Fs, dir, label string) (types.SizeSample, error) {
	total, err := DirectorySize(fsys, dir)
	if err != nil {
		return types.SizeSample{}, err
	}

	return types.SizeSample{
		Label: label,
		Dir:   dir,
		Bytes: total,
		Taken: time.Now(),
	}, nil
}
