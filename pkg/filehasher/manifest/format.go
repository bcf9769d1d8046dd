// Package manifest reads and writes checksum manifests in the SFV family
// format: one "name digest" line per file, with ';' comment lines carrying
// metadata.
//
// Two metadata keys are recognized in comments:
//
//	; FileHasherSetting:Algorithm=SHA256
//	; FileHasherSetting:Directory=photos/2024
//
// The algorithm applies to every data line that follows it. The directory
// is the base path of the entries that follow; data lines still carry the
// full path relative to the manifest's own directory, so plain SFV readers
// can verify the file, and the directory prefix is stripped again on read.
//
// A comment whose first 13 characters after ';' hold an integer is a size
// annotation for the file named from column 36 on:
//
//	;           12                      photos/2024/a.jpg
//	photos/2024/a.jpg 3610A686
//
// Names containing a space are wrapped in double quotes.
package manifest

import (
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// Metadata keys and fixed layout.
const (
	AlgorithmKey = "FileHasherSetting:Algorithm="
	DirectoryKey = "FileHasherSetting:Directory="
	Separator    = "; ---------------"

	// sizeFieldEnd is the end of the size field, counted from the ';'.
	sizeFieldEnd = 14
	// sizeNameColumn is where the file name starts in a size annotation.
	sizeNameColumn = 36
	sizeWidth      = 12
)

// DefaultAlgorithm applies to data lines before any algorithm metadata.
const DefaultAlgorithm = types.CRC32

// Generator identifies the program in the header comment.
const Generator = "filehasher"

// Result is the outcome of Read.
type Result struct {
	// Entries in first-seen order. BasePath holds the directory metadata
	// in effect for the entry, which may be relative to the manifest.
	Entries []types.FileEntry

	// Warnings lists lines that were only partially understood.
	Warnings []*types.ParseError
}

// WriteOptions controls Write.
type WriteOptions struct {
	// Algorithm is written in the header. Empty uses the first hashed
	// entry's algorithm, or DefaultAlgorithm.
	Algorithm types.Algorithm

	// BasePath is written in the header. Empty uses the first entry's base.
	BasePath string

	// OutputDir is the directory the manifest is written to. Paths below it
	// are written relative to it.
	OutputDir string

	// Version is appended to the generator name in the header.
	Version string

	// Now stamps the header. Zero uses time.Now.
	Now time.Time

	// OmitSizes suppresses size annotation comments.
	OmitSizes bool
}
