package output

import (
	"bytes"
	"text/tabwriter"
)

// PlainFormatter writes an aligned, uncoloured table suitable for piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	verified := r.Counts.Verified > 0

	header := "HASH\tSIZE\tNAME\n"
	if verified {
		header = "HASH\tSIZE\tSTATUS\tNAME\n"
	}
	if _, err := tw.Write([]byte(header)); err != nil {
		return err
	}

	for _, row := range r.Rows {
		line := orDash(row.Hash) + "\t" + row.SizeHuman + "\t"
		if verified {
			line += row.Match + "\t"
		}
		if _, err := tw.Write([]byte(line + row.Name + "\n")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// orDash stands in for a missing digest.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
