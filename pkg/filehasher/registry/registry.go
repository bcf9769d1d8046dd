// Package registry holds the ordered table of file entries and coordinates
// the two producers that feed it: a scanner that adds rows and a hasher
// that fills in digests.
//
// Exactly one writer may hold the registry at a time. TryLock never blocks;
// callers that lose the race get false and decide for themselves whether to
// retry. While the lock is held, operations that change row indices are
// refused, so an index handed to the hasher stays valid until the hash is
// recorded.
package registry

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jamesainslie/filehasher/pkg/filehasher/events"
	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("registry")

// BatchSize is the number of pending entries that triggers a commit.
const BatchSize = 100

// Hasher receives single-file hash requests from the registry.
// Enqueue must not block on the registry.
type Hasher interface {
	Enqueue(req types.HashRequest)
	NoMoreFiles()
}

// Options configures a Registry.
type Options struct {
	// Bus receives outbound events. Nil disables them.
	Bus *events.Bus
}

// Registry is the authoritative, ordered collection of file entries.
type Registry struct {
	mu      sync.RWMutex
	rows    []types.FileEntry
	pending []types.FileEntry

	hashed     int
	verified   int
	mismatched int

	locked atomic.Bool

	state    State
	settings types.Settings
	hasher   Hasher
	done     chan struct{}

	bus *events.Bus

	// commitHook runs before each row is appended during a commit.
	commitHook func(i int)
}

// New creates an empty registry.
func New(opts Options) *Registry {
	done := make(chan struct{})
	close(done)
	return &Registry{
		bus:  opts.Bus,
		done: done,
	}
}

// TryLock acquires the write lock if it is free and discards any stale
// pending entries. It never blocks.
func (r *Registry) TryLock() bool {
	if !r.locked.CompareAndSwap(false, true) {
		return false
	}
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
	return true
}

// Lock is TryLock returning types.ErrLockContention on failure.
func (r *Registry) Lock() error {
	if !r.TryLock() {
		return types.ErrLockContention
	}
	return nil
}

// Unlock releases the write lock. It is idempotent. A commit in progress
// when the lock is released is rolled back.
func (r *Registry) Unlock() {
	r.locked.Store(false)
}

// Locked reports whether the write lock is held.
func (r *Registry) Locked() bool {
	return r.locked.Load()
}

// Begin starts a session with settings and an optional hasher. The caller
// must hold the write lock. The session ends when both AdditionFinished and
// HashingFinished have been reported; Done is closed at that point.
func (r *Registry) Begin(settings types.Settings, h Hasher) error {
	if !r.locked.Load() {
		return types.ErrNotLocked
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Active() {
		logger.Warn("abandoning unfinished session", "state", r.state)
		close(r.done)
	}
	r.state = Scanning
	r.settings = settings
	r.hasher = h
	r.pending = nil
	r.done = make(chan struct{})
	return nil
}

// Submit appends entries to the pending buffer. The buffer is committed
// when force is set or it reaches the batch size. Each committed entry
// without a hash produces a hash request when the session's settings ask
// for immediate hashing.
func (r *Registry) Submit(entries []types.FileEntry, force bool) error {
	if !r.locked.Load() {
		return types.ErrNotLocked
	}

	r.mu.Lock()
	r.pending = append(r.pending, entries...)
	if len(r.pending) == 0 || (!force && len(r.pending) < BatchSize) {
		r.mu.Unlock()
		return nil
	}

	start, reqs, err := r.commitLocked()
	h := r.hasher
	var found []types.FileEntry
	if err == nil && r.bus != nil {
		found = slices.Clone(r.rows[start:])
	}
	counts := r.countsLocked()
	r.mu.Unlock()

	if err != nil {
		logger.Warn("commit rolled back", "error", err)
		return err
	}

	for i, e := range found {
		r.bus.Publish(events.Event{Type: events.FileFound, Index: start + i, Entry: e})
	}
	r.publishCounts(counts)

	for _, req := range reqs {
		h.Enqueue(req)
	}
	return nil
}

// commitLocked moves the pending buffer into rows. If the write lock is
// released part way through, the rows added so far are removed again.
// Must be called with r.mu held.
func (r *Registry) commitLocked() (int, []types.HashRequest, error) {
	before := len(r.rows)
	batch := r.pending
	r.pending = nil

	wantHash := r.settings.ScanImmediately && r.hasher != nil
	var reqs []types.HashRequest

	for i, e := range batch {
		if r.commitHook != nil {
			r.commitHook(i)
		}
		if !r.locked.Load() {
			r.rows = r.rows[:before]
			return before, nil, types.ErrNotLocked
		}

		e.Match = types.CompareDigests(e.Hash, e.VerifyHash)
		index := len(r.rows)
		r.rows = append(r.rows, e)

		if e.Hash == "" && wantHash {
			reqs = append(reqs, types.HashRequest{
				Index:     index,
				Path:      e.FullPath(),
				Algorithm: r.settings.Algorithm,
				Size:      e.Size,
				ModTime:   e.ModTime,
			})
		}
	}

	for _, e := range batch {
		r.add(e, 1)
	}
	return before, reqs, nil
}

// AdditionFinished reports that the producer of new rows has stopped. The
// pending buffer is flushed and the hasher is told that no more requests
// will follow. Without a hasher the session completes immediately.
func (r *Registry) AdditionFinished() {
	r.mu.Lock()
	if r.state != Scanning {
		r.mu.Unlock()
		return
	}
	r.state = Draining
	r.mu.Unlock()

	if err := r.Submit(nil, true); err != nil {
		logger.Debug("final flush skipped", "error", err)
	}

	r.mu.Lock()
	r.pending = nil
	h := r.hasher
	r.state = HashingRemainder
	r.mu.Unlock()

	if h == nil {
		r.HashingFinished()
		return
	}
	h.NoMoreFiles()
}

// HashingFinished reports that the hasher has drained its queue. It moves
// the session to Done, closes the Done channel and publishes ProcessingDone.
func (r *Registry) HashingFinished() {
	r.mu.Lock()
	if r.state != HashingRemainder {
		r.mu.Unlock()
		return
	}
	r.state = Done
	r.hasher = nil
	close(r.done)
	counts := r.countsLocked()
	r.mu.Unlock()

	logger.Debug("processing done", "total", counts.Total, "hashed", counts.Hashed,
		"verified", counts.Verified, "mismatched", counts.Mismatched)
	r.bus.Publish(events.Event{Type: events.ProcessingDone, Counts: counts})
}

// Done returns a channel that is closed when the current session completes.
// With no session it returns a closed channel.
func (r *Registry) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// State returns the session state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Settings returns the settings of the current or last session.
func (r *Registry) Settings() types.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// RecordHash stores a digest for the row at index. A primary digest is only
// accepted for a row without one, so the first result wins. A verification
// digest always replaces the previous one and updates the match state.
// Indices outside the table are ignored. It reports whether the row changed.
func (r *Registry) RecordHash(index int, alg types.Algorithm, digest string, verify bool) bool {
	digest = strings.ToUpper(strings.TrimSpace(digest))

	r.mu.Lock()
	if index < 0 || index >= len(r.rows) || digest == "" {
		r.mu.Unlock()
		return false
	}

	e := &r.rows[index]
	if !verify && e.Hash != "" {
		r.mu.Unlock()
		return false
	}

	r.add(*e, -1)
	if verify {
		e.VerifyHash = digest
	} else {
		e.Hash = digest
		e.Algorithm = alg
	}
	e.Match = types.CompareDigests(e.Hash, e.VerifyHash)
	r.add(*e, 1)

	if e.Match == types.Mismatch {
		logger.Warn("checksum mismatch", "file", e.RelativeName, "want", e.Hash, "got", e.VerifyHash)
	}
	counts := r.countsLocked()
	r.mu.Unlock()

	r.bus.Publish(events.Event{
		Type:   events.HashComputed,
		Index:  index,
		Result: types.HashResult{Index: index, Algorithm: alg, Digest: digest, Verify: verify},
	})
	r.publishCounts(counts)
	return true
}

// RemoveRows deletes the rows at the given indices. Later rows move up and
// all counters are recomputed. Out-of-range and duplicate indices are ignored.
func (r *Registry) RemoveRows(indices []int) error {
	if r.locked.Load() {
		return types.ErrLockContention
	}

	r.mu.Lock()
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(r.rows) {
			drop[i] = true
		}
	}
	kept := make([]types.FileEntry, 0, len(r.rows)-len(drop))
	for i, e := range r.rows {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	r.rows = kept
	r.recountLocked()
	counts := r.countsLocked()
	r.mu.Unlock()

	r.publishCounts(counts)
	return nil
}

// Clear removes every row.
func (r *Registry) Clear() error {
	if r.locked.Load() {
		return types.ErrLockContention
	}

	r.mu.Lock()
	r.rows = nil
	r.pending = nil
	r.recountLocked()
	if !r.state.Active() {
		r.state = Idle
	}
	r.mu.Unlock()

	r.publishCounts(types.Counts{})
	return nil
}

// RemoveHashes clears every primary digest and algorithm, then every
// verification digest.
func (r *Registry) RemoveHashes() error {
	if r.locked.Load() {
		return types.ErrLockContention
	}

	r.mu.Lock()
	for i := range r.rows {
		r.rows[i].Hash = ""
		r.rows[i].Algorithm = ""
	}
	r.hashed = 0
	r.mu.Unlock()

	return r.RemoveVerifications()
}

// RemoveVerifications clears every verification digest and match state.
func (r *Registry) RemoveVerifications() error {
	if r.locked.Load() {
		return types.ErrLockContention
	}

	r.mu.Lock()
	for i := range r.rows {
		r.rows[i].VerifyHash = ""
		r.rows[i].Match = types.MatchUnknown
	}
	r.verified = 0
	r.mismatched = 0
	counts := r.countsLocked()
	r.mu.Unlock()

	r.publishCounts(counts)
	return nil
}

// SortFunc reorders rows with a stable sort. It is refused while locked.
func (r *Registry) SortFunc(cmp func(a, b types.FileEntry) int) error {
	if r.locked.Load() {
		return types.ErrLockContention
	}

	r.mu.Lock()
	slices.SortStableFunc(r.rows, cmp)
	r.mu.Unlock()
	return nil
}

// Len returns the number of committed rows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// PendingLen returns the number of uncommitted entries.
func (r *Registry) PendingLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// Entry returns a copy of the row at index.
func (r *Registry) Entry(index int) (types.FileEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.rows) {
		return types.FileEntry{}, false
	}
	return r.rows[index], true
}

// Snapshot returns a copy of all rows in order.
func (r *Registry) Snapshot() []types.FileEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rows)
}

// Counts returns the current counters.
func (r *Registry) Counts() types.Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countsLocked()
}

// IsHashComplete reports whether every row has a primary digest.
func (r *Registry) IsHashComplete() bool {
	c := r.Counts()
	return c.Total > 0 && c.Hashed == c.Total
}

// IsHashPartial reports whether any row has a primary digest.
func (r *Registry) IsHashPartial() bool {
	return r.Counts().Hashed > 0
}

// IsVerifyComplete reports whether every hashed row has been verified.
func (r *Registry) IsVerifyComplete() bool {
	c := r.Counts()
	return c.Hashed == c.Verified
}

// IsVerifyPartial reports whether any row has been verified.
func (r *Registry) IsVerifyPartial() bool {
	return r.Counts().Verified > 0
}

// add applies the contribution of e to the counters with sign +1 or -1.
func (r *Registry) add(e types.FileEntry, sign int) {
	if e.Hash != "" {
		r.hashed += sign
	}
	if e.VerifyHash != "" {
		r.verified += sign
	}
	if e.Match == types.Mismatch {
		r.mismatched += sign
	}
}

func (r *Registry) recountLocked() {
	r.hashed, r.verified, r.mismatched = 0, 0, 0
	for _, e := range r.rows {
		r.add(e, 1)
	}
}

func (r *Registry) countsLocked() types.Counts {
	return types.Counts{
		Total:      len(r.rows),
		Hashed:     r.hashed,
		Verified:   r.verified,
		Mismatched: r.mismatched,
	}
}

func (r *Registry) publishCounts(c types.Counts) {
	r.bus.Publish(events.Event{Type: events.CountsChanged, Counts: c})
}
