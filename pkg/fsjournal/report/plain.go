package report

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/fsjournal/pkg/fsjournal/session"
)

// PlainFormatter formats the report as unstyled, tab-aligned text
// suitable for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *session.Result) error {
	if r == nil {
		return ErrNoResult
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	fmt.Fprintf(tw, "RUN\t%s\n", r.RunID)
	fmt.Fprintf(tw, "DIR\t%s\n", r.Dir)
	fmt.Fprintf(tw, "REPLAYED\t%d\n", r.Recovery.Replayed)
	if r.Recovery.Failed > 0 {
		fmt.Fprintf(tw, "REPLAY FAILED\t%d\n", r.Recovery.Failed)
	}
	if r.RecoveryErr != "" {
		fmt.Fprintf(tw, "REPLAY ERROR\t%s\n", r.RecoveryErr)
	}
	if r.JournalFailures > 0 {
		fmt.Fprintf(tw, "JOURNAL FAILURES\t%d\n", r.JournalFailures)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STEP\tSTATUS")
	for _, s := range r.Steps {
		line := s.Name + "\t" + status(s)
		if s.Error != "" {
			line += "\t" + s.Error
		}
		fmt.Fprintln(tw, line)
	}

	if len(r.Samples) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "SAMPLE\tBYTES")
		for _, s := range r.Samples {
			fmt.Fprintf(tw, "%s\t%d\n", s.Label, s.Bytes)
		}
	}

	if len(r.Listed) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "SIZE\tPATH")
		for _, e := range r.Listed {
			fmt.Fprintf(tw, "%d\t%s\n", e.Size, e.Path)
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
