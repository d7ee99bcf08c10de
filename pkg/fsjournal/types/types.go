// Package types provides core data types shared by the fsjournal packages.
// It includes the file and measurement records produced by the lifecycle
// and space packages, along with helpers for formatting byte counts.
package types

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FileEntry describes a regular file inside the managed directory.
type FileEntry struct {
	// Name is the base name of the file.
	Name string `json:"name" yaml:"name"`

	// Path is the directory-joined path of the file.
	Path string `json:"path" yaml:"path"`

	// Size is the file size in bytes at the time it was observed.
	Size int64 `json:"size" yaml:"size"`
}

// HumanSize returns the file size formatted as a human-readable string.
func (f FileEntry) HumanSize() string {
	return FormatSize(f.Size)
}

// SizeSample is a point-in-time measurement of a directory's regular files.
// Samples are reported and logged but never persisted.
type SizeSample struct {
	// Label identifies when in the run the sample was taken.
	Label string `json:"label" yaml:"label"`

	// Dir is the measured directory.
	Dir string `json:"dir" yaml:"dir"`

	// Bytes is the sum of all regular-file sizes in Dir.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// Taken is when the measurement completed.
	Taken time.Time `json:"taken" yaml:"taken"`
}

// TotalSize returns the sum of sizes of the given entries.
func TotalSize(entries []FileEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}

// Names returns the base names of the given entries in their original order.
func Names(entries []FileEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// FormatSize converts a size in bytes to a human-readable string.
// It uses binary (IEC) units (KiB, MiB, GiB, TiB).
//
// Examples:
//   - FormatSize(0) returns "0 B"
//   - FormatSize(1024) returns "1.0 KiB"
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}
