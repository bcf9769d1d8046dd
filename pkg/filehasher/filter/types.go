// Package filter selects, sorts and limits registry entries for display.
// Filtering never touches the registry; it works on snapshots.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// SortField specifies the field to sort entries by.
type SortField int

const (
	// SortNone keeps registry order.
	SortNone SortField = iota
	// SortName sorts by relative name.
	SortName
	// SortSize sorts by size in bytes.
	SortSize
	// SortStatus puts mismatches first, then unknown, then matches.
	SortStatus
)

var sortFieldNames = map[SortField]string{
	SortNone:   "none",
	SortName:   "name",
	SortSize:   "size",
	SortStatus: "status",
}

// String returns the name of the sort field.
func (s SortField) String() string {
	if name, ok := sortFieldNames[s]; ok {
		return name
	}
	return "none"
}

// ErrInvalidSortField indicates that the sort field string could not be parsed.
var ErrInvalidSortField = errors.New("invalid sort field")

// ParseSortField parses "none", "name", "size" or "status", case-insensitively.
// An empty string means SortNone.
func ParseSortField(s string) (SortField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortNone, nil
	}
	for field, name := range sortFieldNames {
		if name == s {
			return field, nil
		}
	}
	return SortNone, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
}

// Status selects entries by digest state.
type Status int

const (
	StatusAll Status = iota
	StatusHashed
	StatusUnhashed
	StatusVerified
	StatusUnverified
	StatusMatch
	StatusMismatch
)

var statusNames = map[Status]string{
	StatusAll:        "all",
	StatusHashed:     "hashed",
	StatusUnhashed:   "unhashed",
	StatusVerified:   "verified",
	StatusUnverified: "unverified",
	StatusMatch:      "match",
	StatusMismatch:   "mismatch",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "all"
}

// ErrInvalidStatus indicates that the status string could not be parsed.
var ErrInvalidStatus = errors.New("invalid status")

// ParseStatus parses a status name. An empty string means StatusAll.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusAll, nil
	}
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return StatusAll, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}
