// Package output renders a read-only projection of a checksum session in
// various formats (plain, pretty, json, yaml, tsv, csv, template).
//
// Formatters are looked up by name from a registry:
//
//	f, err := output.Get("plain")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, output.NewReport(p.Snapshot(), res)); err != nil {
//	    return err
//	}
//	os.Stdout.Write(buf.Bytes())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/project"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("output")

// Row is one registry entry prepared for display.
type Row struct {
	// Name is the relative name in slash form.
	Name string `json:"name" yaml:"name"`

	// Base is the directory the name is relative to.
	Base string `json:"base" yaml:"base"`

	// Size is the size in bytes, or -1 when unknown.
	Size int64 `json:"size" yaml:"size"`

	// SizeHuman is Size with binary units, "?" when unknown.
	SizeHuman string `json:"size_human" yaml:"size_human"`

	Hash       string          `json:"hash,omitempty" yaml:"hash,omitempty"`
	VerifyHash string          `json:"verify_hash,omitempty" yaml:"verify_hash,omitempty"`
	Match      string          `json:"match" yaml:"match"`
	Algorithm  types.Algorithm `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

// Report is the data handed to formatters.
type Report struct {
	Rows []Row `json:"rows" yaml:"rows"`

	// Root is the scanned directory or the manifest base.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	// Operation is the run that produced the rows, empty for a plain load.
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`

	Algorithm types.Algorithm `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Counts    types.Counts    `json:"counts" yaml:"counts"`
	Elapsed   time.Duration   `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
	Aborted   bool            `json:"aborted" yaml:"aborted"`

	// Warnings holds per-file errors and manifest parse problems.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewReport projects rows and an optional run result into a Report.
// Counts are derived from rows so a report is consistent on its own.
func NewReport(rows []types.FileEntry, res *project.Result) *Report {
	r := &Report{Rows: make([]Row, len(rows))}
	for i := range rows {
		e := &rows[i]
		r.Rows[i] = Row{
			Name:       e.RelativeName,
			Base:       e.BasePath,
			Size:       e.Size,
			SizeHuman:  e.HumanSize(),
			Hash:       e.Hash,
			VerifyHash: e.VerifyHash,
			Match:      e.Match.String(),
			Algorithm:  e.Algorithm,
		}
		r.Counts.Total++
		if e.Hash != "" {
			r.Counts.Hashed++
		}
		if e.VerifyHash != "" {
			r.Counts.Verified++
		}
		if e.Match == types.Mismatch {
			r.Counts.Mismatched++
		}
	}

	if res != nil {
		r.Root = res.Root
		r.Operation = string(res.Operation)
		r.Algorithm = res.Algorithm
		r.Elapsed = res.Elapsed
		r.Aborted = res.Aborted
		for _, fe := range res.Errors {
			r.Warnings = append(r.Warnings, fe.Path+": "+fe.Error)
		}
	}
	return r
}

// AddParseWarnings appends manifest parse problems to the warnings.
func (r *Report) AddParseWarnings(warnings []*types.ParseError) {
	for _, w := range warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
}

// TotalSize returns the sum of all known sizes.
func (r *Report) TotalSize() int64 {
	var total int64
	for _, row := range r.Rows {
		if row.Size > 0 {
			total += row.Size
		}
	}
	return total
}

// Formatter renders a Report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		logger.Debug("unknown formatter requested", "name", name)
		return nil, fmt.Errorf("unknown format %q (available: %v)", name, r.availableLocked())
	}
	return factory(), nil
}

// Available returns the sorted names of all registered formatters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the formatters of the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
