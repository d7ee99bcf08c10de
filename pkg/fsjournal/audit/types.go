// Package audit provides the human-readable, append-only record of every
// operation fsjournal executes.
package audit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ctime-style layout used at the start of each line.
const TimestampLayout = time.ANSIC

// sizeOpen and sizeClose delimit the optional byte count of a sized record.
const (
	sizeOpen  = " (Dateigröße: "
	sizeClose = " Bytes)"
)

// ErrMalformedRecord is returned by ParseLine for lines that do not follow
// the audit format.
var ErrMalformedRecord = errors.New("malformed audit record")

// Record is a single line of the audit log.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Size        *int64    `json:"size,omitempty"` // Set for sized records only
}

// HasSize reports whether the record carries a byte count.
func (r Record) HasSize() bool {
	return r.Size != nil
}

// String renders the record in the on-disk line format, without the newline.
func (r Record) String() string {
	ts := r.Timestamp.Format(TimestampLayout)
	if r.Size == nil {
		return fmt.Sprintf("%s: %s", ts, r.Description)
	}
	return fmt.Sprintf("%s: %s%s%d%s", ts, r.Description, sizeOpen, *r.Size, sizeClose)
}

// ParseLine parses one audit log line back into a Record. Timestamps are
// interpreted in the local time zone, as they were written.
func ParseLine(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")

	n := len(TimestampLayout)
	if len(line) < n+2 || line[n:n+2] != ": " {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedRecord, line)
	}

	ts, err := time.ParseInLocation(TimestampLayout, line[:n], time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("%w: timestamp: %w", ErrMalformedRecord, err)
	}

	rec := Record{Timestamp: ts, Description: line[n+2:]}

	if strings.HasSuffix(rec.Description, sizeClose) {
		if idx := strings.LastIndex(rec.Description, sizeOpen); idx >= 0 {
			raw := rec.Description[idx+len(sizeOpen) : len(rec.Description)-len(sizeClose)]
			if size, err := strconv.ParseInt(raw, 10, 64); err == nil {
				rec.Description = rec.Description[:idx]
				rec.Size = &size
			}
		}
	}

	return rec, nil
}
