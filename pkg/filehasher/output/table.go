package output

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
)

var tableHeader = []string{"name", "size", "algorithm", "hash", "verify_hash", "match"}

func tableRecord(row Row) []string {
	return []string{
		row.Name,
		strconv.FormatInt(row.Size, 10),
		string(row.Algorithm),
		row.Hash,
		row.VerifyHash,
		row.Match,
	}
}

// TSVFormatter writes tab-separated values with a header row.
// Tabs and newlines inside names are replaced by spaces.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(strings.Join(tableHeader, "\t"))
	w.WriteByte('\n')
	for _, row := range r.Rows {
		rec := tableRecord(row)
		rec[0] = tsvEscaper.Replace(rec[0])
		w.WriteString(strings.Join(rec, "\t"))
		w.WriteByte('\n')
	}
	return nil
}

var tsvEscaper = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter writes RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tableHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := writer.Write(tableRecord(row)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)
