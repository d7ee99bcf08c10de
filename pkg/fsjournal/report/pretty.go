package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/session"
	"github.com/jamesainslie/fsjournal/pkg/fsjournal/types"
)

// PrettyFormatter formats the report with lipgloss styling for terminals.
type PrettyFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *session.Result) error {
	if r == nil {
		return ErrNoResult
	}

	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatSteps(r))
	w.WriteString(f.formatSamples(r))
	w.WriteString(f.formatFiles(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

// formatHeader builds the header box with run metadata and recovery info.
func (f *PrettyFormatter) formatHeader(r *session.Result) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Run:"), ValueStyle.Render(r.RunID)))
	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Directory:"), ValueStyle.Render(r.Dir)))

	recovery := fmt.Sprintf("%d %s replayed", r.Recovery.Replayed, plural(r.Recovery.Replayed, "entry", "entries"))
	switch {
	case r.RecoveryErr != "":
		recovery = WarningStyle.Render(fmt.Sprintf("%s (%s)", recovery, r.RecoveryErr))
	case r.Recovery.Failed > 0:
		recovery = WarningStyle.Render(fmt.Sprintf("%s, %d failed", recovery, r.Recovery.Failed))
	case r.Recovery.Replayed == 0:
		recovery = MutedStyle.Render(recovery)
	default:
		recovery = ValueStyle.Render(recovery)
	}
	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Recovery:"), recovery))

	if r.JournalFailures > 0 {
		lines = append(lines, WarningStyle.Render(fmt.Sprintf("%d journal %s failed",
			r.JournalFailures, plural(r.JournalFailures, "write", "writes"))))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatSteps lists each attempted step with its outcome.
func (f *PrettyFormatter) formatSteps(r *session.Result) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Steps"))
	sb.WriteString("\n")

	if len(r.Steps) == 0 {
		sb.WriteString(MutedStyle.Render("  No steps run"))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, s := range r.Steps {
		if s.Completed {
			sb.WriteString(fmt.Sprintf("  %s %s\n", SuccessStyle.Render("✓"), s.Name))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", ErrorStyle.Render("✗"), s.Name))
		if s.Error != "" {
			sb.WriteString("    " + ErrorStyle.Render(s.Error) + "\n")
		}
	}
	return sb.String()
}

// formatSamples lists the space measurements.
func (f *PrettyFormatter) formatSamples(r *session.Result) string {
	if len(r.Samples) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(TitleStyle.Render("Space used"))
	sb.WriteString("\n")
	for _, s := range r.Samples {
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			LabelStyle.Render(padRight(s.Label+":", 14)),
			SizeStyle.Render(types.FormatSize(s.Bytes)),
			MutedStyle.Render(fmt.Sprintf("(%s bytes)", humanize.Comma(s.Bytes)))))
	}
	return sb.String()
}

// formatFiles lists the files found by the list step.
func (f *PrettyFormatter) formatFiles(r *session.Result) string {
	if len(r.Listed) == 0 {
		return ""
	}

	width := 8
	for _, e := range r.Listed {
		if n := len(e.HumanSize()); n > width {
			width = n
		}
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(TitleStyle.Render("Files listed"))
	sb.WriteString("\n")
	for _, e := range r.Listed {
		sb.WriteString(fmt.Sprintf("  %s  %s\n", SizeStyle.Render(padLeft(e.HumanSize(), width)), ValueStyle.Render(e.Path)))
	}
	return sb.String()
}

// formatFooter builds the footer box with the outcome and totals.
func (f *PrettyFormatter) formatFooter(r *session.Result) string {
	var parts []string

	if r.Succeeded() {
		parts = append(parts, SuccessStyle.Bold(true).Render("All operations completed"))
	} else {
		parts = append(parts, ErrorStyle.Bold(true).Render("Run failed"))
	}

	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Created:"),
		ValueStyle.Render(fmt.Sprintf("%d", len(r.Created)))))
	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Deleted:"),
		SizeStyle.Render(humanize.IBytes(uint64(types.TotalSize(r.Deleted))))))

	if d := r.Duration(); d > 0 {
		parts = append(parts, MutedStyle.Render(d.Round(100*time.Microsecond).String()))
	}

	return FooterBox.Render(strings.Join(parts, "  "))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
