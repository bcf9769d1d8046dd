package output

import "bytes"

// NamesFormatter writes one relative name per line.
type NamesFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NamesFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, row := range r.Rows {
		w.WriteString(row.Name)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("names", func() Formatter {
		return &NamesFormatter{}
	})
}

var _ Formatter = (*NamesFormatter)(nil)

// NullFormatter discards the report. Useful when only the exit status matters.
type NullFormatter struct{}

// Format writes nothing.
func (f *NullFormatter) Format(_ *bytes.Buffer, _ *Report) error {
	return nil
}

func init() {
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

var _ Formatter = (*NullFormatter)(nil)
