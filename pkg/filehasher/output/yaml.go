package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

type yamlOutput struct {
	Rows []Row    `yaml:"rows"`
	Meta yamlMeta `yaml:"meta"`
}

type yamlMeta struct {
	Root       string `yaml:"root,omitempty"`
	Operation  string `yaml:"operation,omitempty"`
	Algorithm  string `yaml:"algorithm,omitempty"`
	Total      int    `yaml:"total"`
	Hashed     int    `yaml:"hashed"`
	Verified   int    `yaml:"verified"`
	Mismatched int    `yaml:"mismatched"`
	TotalSize  int64  `yaml:"total_size"`
	Elapsed    string `yaml:"elapsed,omitempty"`
	Aborted    bool   `yaml:"aborted"`

	Warnings []string `yaml:"warnings,omitempty"`
}

// YAMLFormatter writes the report as a YAML document.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Report) error {
	out := yamlOutput{
		Rows: r.Rows,
		Meta: yamlMeta{
			Root:       r.Root,
			Operation:  r.Operation,
			Algorithm:  string(r.Algorithm),
			Total:      r.Counts.Total,
			Hashed:     r.Counts.Hashed,
			Verified:   r.Counts.Verified,
			Mismatched: r.Counts.Mismatched,
			TotalSize:  r.TotalSize(),
			Aborted:    r.Aborted,
			Warnings:   r.Warnings,
		},
	}
	if out.Rows == nil {
		out.Rows = []Row{}
	}
	if r.Elapsed > 0 {
		out.Meta.Elapsed = r.Elapsed.String()
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var _ Formatter = (*YAMLFormatter)(nil)
