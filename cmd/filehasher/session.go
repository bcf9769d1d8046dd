package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/jamesainslie/filehasher/pkg/filehasher/cache"
	"github.com/jamesainslie/filehasher/pkg/filehasher/events"
	"github.com/jamesainslie/filehasher/pkg/filehasher/filter"
	"github.com/jamesainslie/filehasher/pkg/filehasher/history"
	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/output"
	"github.com/jamesainslie/filehasher/pkg/filehasher/project"
	"github.com/jamesainslie/filehasher/pkg/filehasher/tuner"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("cli")

var (
	// errAborted is returned when a run was interrupted.
	errAborted = errors.New("run aborted")

	// errVerifyFailed makes verify exit non-zero after the report has
	// been printed.
	errVerifyFailed = errors.New("verification failed")
)

// session is one command's project together with the cache and progress
// bar wired into it.
type session struct {
	proj     *project.Project
	cache    *cache.Cache
	bus      *events.Bus
	progress *progress
}

// newSession tunes the worker pools to this machine, opens the digest
// cache when useCache is set and creates an empty project.
func newSession(useCache bool) (*session, error) {
	bufSize, err := cfg.BufferBytes()
	if err != nil {
		return nil, err
	}

	res, err := tuner.Detect()
	if err != nil {
		logger.Warn("could not detect system resources", "error", err)
	}
	tuned := tuner.CalculateWithOverrides(res, cfg.Workers.Walk, cfg.Workers.Hash, bufSize)
	printVerbose("workers: walk=%d hash=%d buffer=%s",
		tuned.WalkWorkers, tuned.HashWorkers, types.FormatSize(int64(tuned.BufferSize)))

	s := &session{
		bus:      events.NewBus(),
		progress: newProgress(viper.GetBool("no_progress")),
	}
	if getVerbose() {
		go traceEvents(s.bus.Subscribe(events.ScanFinished, events.ProcessingDone))
	}

	opts := project.Options{
		Exclude:     cfg.Exclude,
		WalkWorkers: tuned.WalkWorkers,
		HashWorkers: tuned.HashWorkers,
		BufferSize:  tuned.BufferSize,
		Bus:         s.bus,
		Version:     version,
		OnFound:     s.progress.onFound,
		OnHashed:    s.progress.onHashed,
	}

	if useCache && cfg.Cache.Enabled && !viper.GetBool("no_cache") {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			logger.Warn("digest cache unavailable", "path", cfg.CachePath(), "error", err)
			printVerbose("digest cache disabled: %v", err)
		} else {
			s.cache = c
			opts.Cache = c
		}
	}

	s.proj = project.New(opts)
	return s, nil
}

// close flushes and closes the cache and stops event delivery.
func (s *session) close() {
	s.bus.Close()
	if s.cache == nil {
		return
	}
	if err := s.cache.Close(); err != nil {
		logger.Warn("failed to close digest cache", "error", err)
	}
}

// traceEvents prints pipeline milestones until the bus is closed.
func traceEvents(sub *events.Subscriber) {
	for ev := range sub.Events {
		switch ev.Type {
		case events.ScanFinished:
			printVerbose("directory walk finished")
		case events.ProcessingDone:
			printVerbose("processing done: %d files, %d hashed, %d verified, %d mismatched",
				ev.Counts.Total, ev.Counts.Hashed, ev.Counts.Verified, ev.Counts.Mismatched)
		}
	}
}

// run starts an operation and waits for it. SIGINT and SIGTERM abort the
// run; rows committed before the signal are kept.
func (s *session) run(start func(ctx context.Context) error) (*project.Result, error) {
	ctx := context.Background()
	if err := start(ctx); err != nil {
		return nil, err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			printInfo("\nInterrupted, finishing files in progress...")
			s.proj.Abort()
		case <-done:
		}
	}()

	res, err := s.proj.Wait(ctx)
	s.progress.finish()
	return res, err
}

// record appends the run to the history and applies the retention.
func (s *session) record(res *project.Result, manifestPath string) {
	if res == nil || !cfg.History.Enabled {
		return
	}
	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	rec, err := h.Add(history.FromResult(res, manifestPath))
	if err != nil {
		logger.Warn("failed to record run", "error", err)
		return
	}
	printVerbose("recorded run %s", rec.ID)

	if _, err := h.Clean(cfg.History.RetentionDays); err != nil {
		logger.Warn("failed to clean history", "error", err)
	}
}

// report renders rows through f (which may be nil) and prints the
// result on stdout.
func (s *session) report(f *filter.Filter, res *project.Result, warnings []*types.ParseError) error {
	rows := s.proj.Snapshot()
	if f != nil {
		rows = f.Apply(rows)
	}
	r := output.NewReport(rows, res)
	if res == nil {
		r.Root = s.proj.BasePath()
		r.Algorithm = s.proj.Settings().Algorithm
	}
	r.AddParseWarnings(warnings)
	return render(r)
}

// render formats r with the configured formatter.
func render(r *output.Report) error {
	formatter, err := selectFormatter()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

func selectFormatter() (output.Formatter, error) {
	name := cfg.Format
	if name == "" {
		name = "plain"
	}
	tmpl := viper.GetString("template")
	if name == "template" && tmpl != "" {
		return output.NewTemplateFormatter(tmpl), nil
	}
	return output.Get(name)
}

// absPath resolves p or returns it unchanged.
func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

// summarize prints the run totals on stderr.
func summarize(res *project.Result) {
	c := res.Counts
	switch res.Operation {
	case project.OpVerify:
		printInfo("%d files, %d verified, %d mismatched, %d failed in %s",
			c.Total, c.Verified, c.Mismatched, res.Hash.Failed, res.Elapsed.Round(time.Millisecond))
	default:
		printInfo("%d files, %d hashed (%d from cache), %d failed in %s",
			c.Total, c.Hashed, res.Hash.CacheHits, res.Hash.Failed, res.Elapsed.Round(time.Millisecond))
	}
	if res.Aborted {
		printInfo("Run aborted before all files were processed.")
	}
}
