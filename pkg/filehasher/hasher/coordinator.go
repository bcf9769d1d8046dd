// Package hasher computes digests for registry rows on a worker pool.
//
// A Coordinator serves two kinds of work. In scan mode the registry calls
// Enqueue for each new row and NoMoreFiles once the scan is over; the
// coordinator reports HashingFinished after every earlier request is done.
// In project mode HashProject walks a snapshot of the registry and hashes
// the rows that lack the requested digest, then reports AdditionFinished,
// which leads the registry back through NoMoreFiles.
package hasher

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/checksum"
	"github.com/jamesainslie/filehasher/pkg/filehasher/events"
	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("hasher")

// Sink receives results and completion signals. *registry.Registry
// implements it.
type Sink interface {
	RecordHash(index int, alg types.Algorithm, digest string, verify bool) bool
	AdditionFinished()
	HashingFinished()
}

// DigestCache stores primary digests keyed by path and algorithm. Entries
// are only valid for the recorded size and modification time.
type DigestCache interface {
	Lookup(path string, alg types.Algorithm, size int64, modTime time.Time) (string, bool)
	Store(path string, alg types.Algorithm, size int64, modTime time.Time, digest string)
}

// Options configures a Coordinator.
type Options struct {
	// Workers is the number of files hashed in parallel. Zero uses 4.
	Workers int

	// BufferSize is the per-worker read buffer. Zero uses the checksum default.
	BufferSize int

	// Cache, if set, is consulted for primary digests. Verification always
	// reads the file.
	Cache DigestCache

	// Bus receives Progress events.
	Bus *events.Bus

	// OnProgress, if set, is called with the number of processed rows.
	// Calls are serialized and the count never decreases.
	OnProgress func(processed int64)
}

// Stats counts what a Coordinator did.
type Stats struct {
	Hashed    int64 `json:"hashed"`
	CacheHits int64 `json:"cache_hits"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// Coordinator dispatches hash work to a bounded pool of goroutines.
// A Coordinator serves one session; Abort is permanent.
type Coordinator struct {
	sink Sink
	opts Options

	box  *mailbox
	quit chan struct{}
	stop sync.Once
	exit chan struct{}

	slots    chan struct{}
	inflight sync.WaitGroup
	bufPool  sync.Pool

	aborted atomic.Bool

	progressMu sync.Mutex
	processed  int64

	hashed    atomic.Int64
	cacheHits atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64

	errorsMu sync.Mutex
	errors   []types.FileError
}

// New creates a Coordinator reporting to sink and starts its dispatcher.
// Call Close when the session is over.
func New(sink Sink, opts Options) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = checksum.DefaultBufferSize
	}

	c := &Coordinator{
		sink:  sink,
		opts:  opts,
		box:   newMailbox(),
		quit:  make(chan struct{}),
		exit:  make(chan struct{}),
		slots: make(chan struct{}, opts.Workers),
	}
	bufSize := opts.BufferSize
	c.bufPool.New = func() any {
		buf := make([]byte, bufSize)
		return &buf
	}

	go c.dispatch()
	return c
}

// Enqueue schedules a single-file request. It never blocks.
func (c *Coordinator) Enqueue(req types.HashRequest) {
	c.box.push(item{req: req})
}

// NoMoreFiles marks the end of scan-mode requests. Once every request
// queued before it has finished, the sink receives HashingFinished.
func (c *Coordinator) NoMoreFiles() {
	c.box.push(item{marker: true})
}

// Abort stops new work. Queued requests are drained without being hashed;
// files already being read are finished.
func (c *Coordinator) Abort() {
	if c.aborted.CompareAndSwap(false, true) {
		logger.Info("hashing aborted", "queued", c.box.len())
	}
}

// Aborted reports whether Abort was called.
func (c *Coordinator) Aborted() bool {
	return c.aborted.Load()
}

// Close stops the dispatcher. Requests still queued are dropped.
func (c *Coordinator) Close() {
	c.stop.Do(func() { close(c.quit) })
	<-c.exit
}

// Stats returns the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Hashed:    c.hashed.Load(),
		CacheHits: c.cacheHits.Load(),
		Failed:    c.failed.Load(),
		Skipped:   c.skipped.Load(),
	}
}

// Errors returns the per-file failures so far.
func (c *Coordinator) Errors() []types.FileError {
	c.errorsMu.Lock()
	defer c.errorsMu.Unlock()
	return append([]types.FileError(nil), c.errors...)
}

// HashProject hashes every row of rows that lacks the wanted digest:
// the primary digest when verify is false, otherwise the verification
// digest of rows that have a primary one. Primary digests use alg;
// verification uses each row's own algorithm. Abort or ctx cancellation is checked
// before each row. When the rows are done the sink receives
// AdditionFinished.
func (c *Coordinator) HashProject(ctx context.Context, rows []types.FileEntry, verify bool, alg types.Algorithm) {
	logger.Info("project hashing started", "rows", len(rows), "verify", verify)

	var wg sync.WaitGroup
	for i, row := range rows {
		if ctx.Err() != nil {
			c.Abort()
		}
		if c.aborted.Load() {
			break
		}

		needed := (verify && row.Hash != "" && row.VerifyHash == "") || (!verify && row.Hash == "")
		if !needed {
			c.advance()
			continue
		}

		req := types.HashRequest{
			Index:     i,
			Path:      row.FullPath(),
			Algorithm: alg,
			Verify:    verify,
		}
		if verify {
			req.Algorithm = row.Algorithm
			if req.Algorithm == "" {
				req.Algorithm = types.DefaultAlgorithm
			}
		}

		c.slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-c.slots }()
			c.process(req)
		}()
	}
	wg.Wait()

	logger.Info("project hashing finished", "hashed", c.hashed.Load(), "failed", c.failed.Load(),
		"aborted", c.aborted.Load())
	c.sink.AdditionFinished()
}

// dispatch moves mailbox items onto the worker pool in order.
func (c *Coordinator) dispatch() {
	defer close(c.exit)

	for {
		it, ok := c.box.pop(c.quit)
		if !ok {
			return
		}

		if it.marker {
			c.inflight.Wait()
			logger.Debug("no more files", "hashed", c.hashed.Load(), "skipped", c.skipped.Load())
			c.sink.HashingFinished()
			continue
		}

		if c.aborted.Load() {
			c.skipped.Add(1)
			continue
		}

		select {
		case c.slots <- struct{}{}:
		case <-c.quit:
			return
		}
		c.inflight.Add(1)
		go func(req types.HashRequest) {
			defer c.inflight.Done()
			defer func() { <-c.slots }()
			c.process(req)
		}(it.req)
	}
}

// process hashes one file and reports the result.
func (c *Coordinator) process(req types.HashRequest) {
	defer c.advance()

	if c.aborted.Load() {
		c.skipped.Add(1)
		return
	}

	digest, err := c.digest(req)
	if err != nil {
		c.failed.Add(1)
		logger.Warn("hash failed", "path", req.Path, "error", err)
		c.errorsMu.Lock()
		c.errors = append(c.errors, types.FileError{Path: req.Path, Error: err.Error()})
		c.errorsMu.Unlock()
		return
	}

	c.hashed.Add(1)
	c.sink.RecordHash(req.Index, req.Algorithm, digest, req.Verify)
}

func (c *Coordinator) digest(req types.HashRequest) (string, error) {
	useCache := c.opts.Cache != nil && !req.Verify
	size, modTime := req.Size, req.ModTime

	if useCache && modTime.IsZero() {
		info, err := os.Stat(req.Path)
		if err != nil {
			return "", types.NewIOError("stat", req.Path, err)
		}
		size, modTime = info.Size(), info.ModTime()
	}

	if useCache {
		if digest, ok := c.opts.Cache.Lookup(req.Path, req.Algorithm, size, modTime); ok {
			c.cacheHits.Add(1)
			return digest, nil
		}
	}

	bufp, _ := c.bufPool.Get().(*[]byte)
	digest, err := checksum.DigestFileBuffer(req.Path, req.Algorithm, *bufp)
	c.bufPool.Put(bufp)
	if err != nil {
		return "", err
	}

	if useCache {
		c.opts.Cache.Store(req.Path, req.Algorithm, size, modTime, digest)
	}
	return digest, nil
}

// advance counts one processed row and reports progress.
func (c *Coordinator) advance() {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()

	c.processed++
	if c.opts.OnProgress != nil {
		c.opts.OnProgress(c.processed)
	}
	c.opts.Bus.Publish(events.Event{Type: events.Progress, Processed: c.processed})
}
