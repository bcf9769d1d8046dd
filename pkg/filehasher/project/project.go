// Package project ties the pipeline together. A Project owns one registry
// and accepts the inbound operations of a checksum session: scan a
// directory, hash or verify the loaded rows, abort, remove rows, clear,
// load and save manifests.
//
// Scan and Hash return as soon as the run has started; Wait blocks until
// it has completed. While a run is in flight every other mutating
// operation fails with types.ErrLockContention.
package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/events"
	"github.com/jamesainslie/filehasher/pkg/filehasher/hasher"
	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/registry"
	"github.com/jamesainslie/filehasher/pkg/filehasher/scanner"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("project")

// ErrNoRun is returned by Wait when nothing has been started.
var ErrNoRun = errors.New("no run started")

// Operation names a kind of run.
type Operation string

const (
	OpScan   Operation = "scan"
	OpHash   Operation = "hash"
	OpVerify Operation = "verify"
)

// Options configures a Project.
type Options struct {
	// Exclude holds scanner glob patterns.
	Exclude []string

	// WalkWorkers and HashWorkers size the worker pools. Zero picks defaults.
	WalkWorkers int
	HashWorkers int

	// BufferSize is the read buffer used for hashing.
	BufferSize int

	// Cache, if set, serves primary digests of unchanged files.
	Cache hasher.DigestCache

	// Bus receives the outbound events of every component.
	Bus *events.Bus

	// Version is written into saved manifests.
	Version string

	// OnFound is called with the number of files found during a scan.
	OnFound func(found int64)

	// OnHashed is called with the number of rows processed by the hasher.
	OnHashed func(processed int64)
}

// Result summarizes one completed run.
type Result struct {
	Operation  Operation         `json:"operation" yaml:"operation"`
	Root       string            `json:"root,omitempty" yaml:"root,omitempty"`
	Algorithm  types.Algorithm   `json:"algorithm" yaml:"algorithm"`
	Started    time.Time         `json:"started" yaml:"started"`
	Elapsed    time.Duration     `json:"elapsed" yaml:"elapsed"`
	Aborted    bool              `json:"aborted" yaml:"aborted"`
	Counts     types.Counts      `json:"counts" yaml:"counts"`
	Found      int64             `json:"found" yaml:"found"`
	Hash       hasher.Stats      `json:"hash" yaml:"hash"`
	Mismatched []string          `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
	Errors     []types.FileError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// run is the state of an in-flight Scan or Hash.
type run struct {
	op      Operation
	scanner *scanner.Scanner
	coord   *hasher.Coordinator
	cancel  context.CancelFunc
	done    chan struct{}
	result  *Result
}

// Project is a checksum session over one registry.
type Project struct {
	opts Options
	reg  *registry.Registry

	mu       sync.Mutex
	current  *run
	last     *run
	basePath string
	settings types.Settings
}

// New creates an empty project.
func New(opts Options) *Project {
	return &Project{
		opts:     opts,
		reg:      registry.New(registry.Options{Bus: opts.Bus}),
		settings: types.DefaultSettings(),
	}
}

// Registry exposes the underlying registry for read-only queries.
func (p *Project) Registry() *registry.Registry { return p.reg }

// Snapshot returns a copy of the rows.
func (p *Project) Snapshot() []types.FileEntry { return p.reg.Snapshot() }

// Counts returns the registry counters.
func (p *Project) Counts() types.Counts { return p.reg.Counts() }

// BasePath is the root of the last scan or the base of the loaded manifest.
func (p *Project) BasePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.basePath
}

// Settings returns the settings of the last run or load.
func (p *Project) Settings() types.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Busy reports whether a run is in flight.
func (p *Project) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busyLocked()
}

func (p *Project) busyLocked() bool {
	if p.current == nil {
		return false
	}
	select {
	case <-p.current.done:
		return false
	default:
		return true
	}
}

// Scan clears the registry, walks root and adds the files found. Depending
// on settings, digests are computed inline, queued for the hasher as rows
// are committed, or left empty.
func (p *Project) Scan(ctx context.Context, root string, settings types.Settings) error {
	if settings.Algorithm == "" {
		settings.Algorithm = types.CRC32
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	sc, err := scanner.New(scanner.Options{
		Root:       abs,
		Settings:   settings,
		Exclude:    p.opts.Exclude,
		Workers:    p.opts.WalkWorkers,
		BufferSize: p.opts.BufferSize,
		OnProgress: p.opts.OnFound,
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}

	if err := p.reg.Clear(); err != nil {
		return err
	}
	if !p.reg.TryLock() {
		return types.ErrLockContention
	}

	var coord *hasher.Coordinator
	var h registry.Hasher
	if settings.ScanImmediately {
		coord = p.newCoordinator()
		h = coord
	}
	if err := p.reg.Begin(settings, h); err != nil {
		p.reg.Unlock()
		if coord != nil {
			coord.Close()
		}
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &run{
		op:      OpScan,
		scanner: sc,
		coord:   coord,
		cancel:  cancel,
		done:    make(chan struct{}),
		result: &Result{
			Operation: OpScan,
			Root:      abs,
			Algorithm: settings.Algorithm,
			Started:   time.Now(),
		},
	}
	p.current = r
	p.basePath = abs
	p.settings = settings

	go p.runScan(ctx, r)
	return nil
}

func (p *Project) runScan(ctx context.Context, r *run) {
	defer r.cancel()

	res := r.scanner.Scan(ctx, func(e types.FileEntry) {
		if err := p.reg.Submit([]types.FileEntry{e}, false); err != nil {
			r.scanner.Abort()
		}
	})
	p.opts.Bus.Publish(events.Event{Type: events.ScanFinished})

	r.result.Found = res.Files
	r.result.Errors = append(r.result.Errors, res.Errors...)
	if res.Aborted && r.coord != nil {
		r.coord.Abort()
	}

	p.finish(r)
}

// Hash computes the digests the rows lack: primary digests with
// settings.Algorithm, or verification digests with each row's own
// algorithm when verify is set. A non-empty basePath stands in for the
// project's base path: rows under it keep their subdirectory, other rows
// are read from basePath directly.
func (p *Project) Hash(ctx context.Context, settings types.Settings, verify bool, basePath string) error {
	if settings.Algorithm == "" {
		settings.Algorithm = types.CRC32
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	if !p.reg.TryLock() {
		return types.ErrLockContention
	}

	coord := p.newCoordinator()
	if err := p.reg.Begin(settings, coord); err != nil {
		p.reg.Unlock()
		coord.Close()
		return err
	}

	op := OpHash
	if verify {
		op = OpVerify
	}
	root := basePath
	if root == "" {
		root = p.basePath
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &run{
		op:     op,
		coord:  coord,
		cancel: cancel,
		done:   make(chan struct{}),
		result: &Result{
			Operation: op,
			Root:      root,
			Algorithm: settings.Algorithm,
			Started:   time.Now(),
		},
	}
	p.current = r
	if !verify {
		p.settings = settings
	}

	rows := p.reg.Snapshot()
	if basePath != "" {
		rebase(rows, p.basePath, basePath)
	}
	go func() {
		defer r.cancel()
		coord.HashProject(ctx, rows, verify, settings.Algorithm)
		p.finish(r)
	}()
	return nil
}

func (p *Project) newCoordinator() *hasher.Coordinator {
	return hasher.New(p.reg, hasher.Options{
		Workers:    p.opts.HashWorkers,
		BufferSize: p.opts.BufferSize,
		Cache:      p.opts.Cache,
		Bus:        p.opts.Bus,
		OnProgress: p.opts.OnHashed,
	})
}

// finish completes the addition side of a run, waits for the registry to
// report processing done and releases the lock.
func (p *Project) finish(r *run) {
	if r.op == OpScan {
		p.reg.AdditionFinished()
	}
	<-p.reg.Done()
	p.reg.Unlock()

	if r.coord != nil {
		st := r.coord.Stats()
		r.result.Hash = st
		r.result.Errors = append(r.result.Errors, r.coord.Errors()...)
		r.result.Aborted = r.result.Aborted || r.coord.Aborted()
		r.coord.Close()
	}
	if r.scanner != nil && r.scanner.Aborted() {
		r.result.Aborted = true
	}

	r.result.Counts = p.reg.Counts()
	r.result.Elapsed = time.Since(r.result.Started)
	for _, e := range p.reg.Snapshot() {
		if e.Match == types.Mismatch {
			r.result.Mismatched = append(r.result.Mismatched, e.RelativeName)
		}
	}

	logger.Info("run finished", "operation", r.op, "total", r.result.Counts.Total,
		"hashed", r.result.Counts.Hashed, "verified", r.result.Counts.Verified,
		"mismatched", r.result.Counts.Mismatched, "aborted", r.result.Aborted,
		"elapsed", r.result.Elapsed)

	p.mu.Lock()
	p.last = r
	p.mu.Unlock()
	close(r.done)
}

// Abort stops the run in flight. Files the scanner has already emitted
// are still committed, and digests being computed when Abort is called
// are still recorded. Call Wait before starting another operation.
func (p *Project) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.busyLocked() {
		return
	}
	r := p.current

	if r.scanner != nil {
		r.scanner.Abort()
	}
	if r.coord != nil {
		r.coord.Abort()
	}
	r.cancel()
	logger.Info("abort requested", "operation", r.op)
}

// Wait blocks until the current run completes and returns its result.
func (p *Project) Wait(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()
	if r == nil {
		return nil, ErrNoRun
	}

	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LastResult returns the result of the most recent completed run.
func (p *Project) LastResult() (*Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil, false
	}
	return p.last.result, true
}

// RemoveRows deletes rows by index.
func (p *Project) RemoveRows(indices []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	return p.reg.RemoveRows(indices)
}

// RemoveVerifications forgets every verification digest, so the next
// verify run checks all rows again.
func (p *Project) RemoveVerifications() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	return p.reg.RemoveVerifications()
}

// RemoveHashes forgets every digest.
func (p *Project) RemoveHashes() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	return p.reg.RemoveHashes()
}

// Clear removes every row.
func (p *Project) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	if err := p.reg.Clear(); err != nil {
		return err
	}
	p.basePath = ""
	return nil
}

// rebase moves rows from under the directory from to the directory to.
func rebase(rows []types.FileEntry, from, to string) {
	for i := range rows {
		rel, err := filepath.Rel(from, rows[i].BasePath)
		if from == "" || err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rows[i].BasePath = to
			continue
		}
		rows[i].BasePath = filepath.Join(to, rel)
	}
}
