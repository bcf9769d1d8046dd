package filter

import (
	"cmp"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// Filter defines criteria for selecting, sorting and limiting entries.
type Filter struct {
	// MinSize excludes entries smaller than this many bytes. Entries with
	// an unknown size pass only when MinSize is zero.
	MinSize int64

	// Include and Exclude hold glob patterns matched against the relative
	// name. A pattern without a slash matches the base name.
	Include []string
	Exclude []string

	// Extensions restricts entries to these lowercase extensions.
	Extensions []string

	// Status selects entries by digest state.
	Status Status

	SortBy         SortField
	SortDescending bool

	// Limit is the maximum number of entries returned. 0 means unlimited.
	Limit int

	include []glob.Glob
	exclude []glob.Glob
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a filter. With no options every entry passes in registry order.
// Invalid glob patterns are reported here rather than at match time.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{}
	for _, opt := range opts {
		opt(f)
	}

	var err error
	if f.include, err = compile(f.Include); err != nil {
		return nil, err
	}
	if f.exclude, err = compile(f.Exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// WithLimit sets the maximum number of entries. Negative means unlimited.
func WithLimit(limit int) Option {
	return func(f *Filter) {
		f.Limit = max(limit, 0)
	}
}

// WithMinSize sets the minimum size in bytes.
func WithMinSize(minSize int64) Option {
	return func(f *Filter) {
		f.MinSize = max(minSize, 0)
	}
}

// WithInclude sets the include patterns.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Include = patterns
	}
}

// WithExclude sets the exclude patterns.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Exclude = patterns
	}
}

// WithExtensions sets the extensions. They are lowercased and given a
// leading dot when missing.
func WithExtensions(extensions ...string) Option {
	return func(f *Filter) {
		normalized := make([]string, 0, len(extensions))
		for _, ext := range extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			normalized = append(normalized, ext)
		}
		f.Extensions = normalized
	}
}

// WithStatus selects entries by digest state.
func WithStatus(s Status) Option {
	return func(f *Filter) {
		f.Status = s
	}
}

// WithSortBy sets the sort field.
func WithSortBy(field SortField) Option {
	return func(f *Filter) {
		f.SortBy = field
	}
}

// WithSortDescending reverses the sort order.
func WithSortDescending(desc bool) Option {
	return func(f *Filter) {
		f.SortDescending = desc
	}
}

// Match reports whether e passes every criterion.
func (f *Filter) Match(e types.FileEntry) bool {
	return f.matchSize(e) &&
		f.matchExtension(e) &&
		f.matchStatus(e) &&
		f.matchPatterns(e)
}

func (f *Filter) matchSize(e types.FileEntry) bool {
	return f.MinSize <= 0 || e.Size >= f.MinSize
}

func (f *Filter) matchExtension(e types.FileEntry) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(e.RelativeName))
	return slices.Contains(f.Extensions, ext)
}

func (f *Filter) matchStatus(e types.FileEntry) bool {
	switch f.Status {
	case StatusHashed:
		return e.Hash != ""
	case StatusUnhashed:
		return e.Hash == ""
	case StatusVerified:
		return e.VerifyHash != ""
	case StatusUnverified:
		return e.VerifyHash == ""
	case StatusMatch:
		return e.Match == types.Match
	case StatusMismatch:
		return e.Match == types.Mismatch
	default:
		return true
	}
}

func (f *Filter) matchPatterns(e types.FileEntry) bool {
	if matchesAny(e.RelativeName, f.exclude) {
		return false
	}
	return len(f.include) == 0 || matchesAny(e.RelativeName, f.include)
}

// matchesAny tries each glob against the full relative name and its base.
func matchesAny(name string, globs []glob.Glob) bool {
	base := path.Base(name)
	for _, g := range globs {
		if g.Match(name) || g.Match(base) {
			return true
		}
	}
	return false
}

// statusRank orders mismatches before unknown before matches.
func statusRank(m types.MatchState) int {
	switch m {
	case types.Mismatch:
		return 0
	case types.MatchUnknown:
		return 1
	default:
		return 2
	}
}

// Sort returns a sorted copy of entries. The sort is stable so ties keep
// registry order.
func (f *Filter) Sort(entries []types.FileEntry) []types.FileEntry {
	sorted := slices.Clone(entries)
	if f.SortBy == SortNone {
		if f.SortDescending {
			slices.Reverse(sorted)
		}
		return sorted
	}

	slices.SortStableFunc(sorted, func(a, b types.FileEntry) int {
		var result int
		switch f.SortBy {
		case SortName:
			result = cmp.Compare(a.RelativeName, b.RelativeName)
		case SortSize:
			result = cmp.Compare(a.Size, b.Size)
		case SortStatus:
			result = cmp.Compare(statusRank(a.Match), statusRank(b.Match))
		}
		if f.SortDescending {
			return -result
		}
		return result
	})
	return sorted
}

// Apply filters, sorts and limits entries.
func (f *Filter) Apply(entries []types.FileEntry) []types.FileEntry {
	matched := make([]types.FileEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			matched = append(matched, e)
		}
	}

	sorted := f.Sort(matched)
	if f.Limit > 0 && len(sorted) > f.Limit {
		return sorted[:f.Limit]
	}
	return sorted
}
