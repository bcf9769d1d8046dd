package main

import (
	"github.com/spf13/pflag"

	"github.com/jamesainslie/filehasher/pkg/filehasher/filter"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// filterFlags holds the row selection flags shared by show and verify.
type filterFlags struct {
	status     string
	sortBy     string
	descending bool
	limit      int
	minSize    string
	include    []string
	exclude    []string
	extensions []string
}

func (ff *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&ff.status, "status", "all", "rows to show (all, hashed, unhashed, verified, unverified, match, mismatch)")
	fs.StringVar(&ff.sortBy, "sort", "", "sort rows by name, size or status")
	fs.BoolVar(&ff.descending, "desc", false, "reverse the sort order")
	fs.IntVarP(&ff.limit, "limit", "n", 0, "show at most this many rows (0=all)")
	fs.StringVar(&ff.minSize, "min-size", "", "hide files smaller than this (e.g. 10M)")
	fs.StringSliceVar(&ff.include, "include", nil, "only show names matching these globs")
	fs.StringSliceVar(&ff.exclude, "hide", nil, "hide names matching these globs")
	fs.StringSliceVar(&ff.extensions, "ext", nil, "only show these extensions (e.g. mkv,mp4)")
}

// build compiles the flags into a filter.
func (ff *filterFlags) build() (*filter.Filter, error) {
	status, err := filter.ParseStatus(ff.status)
	if err != nil {
		return nil, err
	}
	sortBy, err := filter.ParseSortField(ff.sortBy)
	if err != nil {
		return nil, err
	}
	var minSize int64
	if ff.minSize != "" {
		if minSize, err = types.ParseSize(ff.minSize); err != nil {
			return nil, err
		}
	}
	return filter.New(
		filter.WithStatus(status),
		filter.WithSortBy(sortBy),
		filter.WithSortDescending(ff.descending),
		filter.WithLimit(ff.limit),
		filter.WithMinSize(minSize),
		filter.WithInclude(ff.include...),
		filter.WithExclude(ff.exclude...),
		filter.WithExtensions(ff.extensions...),
	)
}
