package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter renders a coloured report for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.header(r))
	w.WriteString("\n")
	w.WriteString(f.table(r))
	w.WriteString(f.footer(r))
	w.WriteString("\n")

	if len(r.Warnings) > 0 {
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) header(r *Report) string {
	var lines []string
	if r.Root != "" {
		lines = append(lines, LabelStyle.Render("Root:")+" "+ValueStyle.Render(r.Root))
	}

	var parts []string
	if r.Operation != "" {
		parts = append(parts, LabelStyle.Render("Run:")+" "+ValueStyle.Render(r.Operation))
	}
	if r.Algorithm != "" {
		parts = append(parts, LabelStyle.Render("Algorithm:")+" "+ValueStyle.Render(string(r.Algorithm)))
	}
	if r.Elapsed > 0 {
		parts = append(parts, LabelStyle.Render("Elapsed:")+" "+ValueStyle.Render(formatElapsed(r.Elapsed)))
	}
	if len(parts) > 0 {
		lines = append(lines, strings.Join(parts, "  "))
	}
	if r.Aborted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run aborted"))
	}
	if len(lines) == 0 {
		lines = append(lines, MutedStyle.Render("No run information"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) table(r *Report) string {
	if len(r.Rows) == 0 {
		return MutedStyle.Render("  No files") + "\n"
	}

	hashWidth, sizeWidth := 4, 4
	for _, row := range r.Rows {
		hashWidth = max(hashWidth, len(orDash(row.Hash)))
		sizeWidth = max(sizeWidth, len(row.SizeHuman))
	}
	verified := r.Counts.Verified > 0

	var sb strings.Builder
	sb.WriteString("  ")
	sb.WriteString(TableHeaderStyle.Render(padRight("HASH", hashWidth)))
	sb.WriteString("  ")
	sb.WriteString(TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)))
	if verified {
		sb.WriteString("  ")
		sb.WriteString(TableHeaderStyle.Render(padRight("STATUS", 8)))
	}
	sb.WriteString("  ")
	sb.WriteString(TableHeaderStyle.Render("NAME"))
	sb.WriteString("\n")

	for _, row := range r.Rows {
		sb.WriteString("  ")
		if row.Hash == "" {
			sb.WriteString(MutedStyle.Render(padRight("-", hashWidth)))
		} else {
			sb.WriteString(HashStyle.Render(padRight(row.Hash, hashWidth)))
		}
		sb.WriteString("  ")
		sb.WriteString(SizeStyle.Render(padLeft(row.SizeHuman, sizeWidth)))
		if verified {
			sb.WriteString("  ")
			sb.WriteString(matchStyle(row.Match).Render(padRight(row.Match, 8)))
		}
		sb.WriteString("  ")
		sb.WriteString(ValueStyle.Render(row.Name))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) footer(r *Report) string {
	c := r.Counts
	parts := []string{
		LabelStyle.Render("Files:") + " " + ValueStyle.Render(fmt.Sprintf("%d", c.Total)),
		LabelStyle.Render("Hashed:") + " " + ValueStyle.Render(fmt.Sprintf("%d", c.Hashed)),
	}
	if c.Verified > 0 {
		parts = append(parts, LabelStyle.Render("Verified:")+" "+ValueStyle.Render(fmt.Sprintf("%d", c.Verified)))
		mismatched := fmt.Sprintf("%d", c.Mismatched)
		if c.Mismatched > 0 {
			mismatched = ErrorStyle.Render(mismatched)
		} else {
			mismatched = SuccessStyle.Render(mismatched)
		}
		parts = append(parts, LabelStyle.Render("Mismatched:")+" "+mismatched)
	}
	parts = append(parts, LabelStyle.Render("Total:")+" "+SizeStyle.Render(humanize.IBytes(uint64(r.TotalSize()))))
	return FooterBox.Render(strings.Join(parts, "  "))
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

// formatElapsed formats a run duration in a human-friendly way.
func formatElapsed(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
