package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// progress drives a progress bar on stderr from the scan and hash
// callbacks. A nil *progress ignores every call.
type progress struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	found  int64
	hashed int64
	total  int64
}

// newProgress returns nil when stderr is not a terminal or the bar is
// disabled.
func newProgress(disabled bool) *progress {
	if disabled || getQuiet() || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return &progress{bar: newBar(os.Stderr, -1, "scanning")}
}

func newBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(120*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// expect switches the bar to a known number of files.
func (p *progress) expect(total int64, description string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.bar.ChangeMax64(total)
	p.bar.Describe(description)
	_ = p.bar.RenderBlank()
}

func (p *progress) onFound(found int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if found <= p.found {
		return
	}
	p.found = found
	p.bar.Describe(fmt.Sprintf("scanning (%d found)", found))
	if p.hashed == 0 {
		_ = p.bar.Set64(found)
	}
}

func (p *progress) onHashed(processed int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if processed <= p.hashed {
		return
	}
	p.hashed = processed
	if p.total == 0 && p.found > 0 {
		p.bar.Describe(fmt.Sprintf("hashing (%d found)", p.found))
	}
	_ = p.bar.Set64(processed)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}
