package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// ErrUnwritableName is returned for file names the manifest format cannot
// represent.
var ErrUnwritableName = errors.New("file name contains a double quote")

// Write emits entries as a manifest. Entries without a digest are listed
// by name only so they survive a round trip. Nothing is written if any
// name cannot be represented.
func Write(w io.Writer, entries []types.FileEntry, opts WriteOptions) error {
	for _, e := range entries {
		if strings.ContainsRune(e.RelativeName, '"') || strings.ContainsRune(e.BasePath, '"') {
			return types.NewIOError("write manifest", e.FullPath(), ErrUnwritableName)
		}
	}

	bw := bufio.NewWriter(w)
	mw := &writer{w: bw, outDir: slashClean(opts.OutputDir)}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	gen := Generator
	if opts.Version != "" {
		gen += " " + opts.Version
	}

	alg := opts.Algorithm
	if alg == "" {
		alg = firstAlgorithm(entries)
	}
	base := opts.BasePath
	if base == "" && len(entries) > 0 {
		base = entries[0].BasePath
	}

	mw.printf("; Generated by %s on %s\n", gen, now.Format("2006-01-02 at 15:04.05"))
	mw.printf("%s\n", Separator)
	mw.setAlgorithm(alg)
	mw.setDirectory(base)
	mw.printf("%s\n", Separator)

	for _, e := range entries {
		if e.Hash != "" && e.Algorithm != "" && e.Algorithm != mw.alg {
			mw.setAlgorithm(e.Algorithm)
		}
		if mw.relative(e.BasePath) != mw.dir {
			mw.setDirectory(e.BasePath)
		}

		name := quoteName(mw.entryPath(e.RelativeName))

		if e.Hash != "" && !opts.OmitSizes && e.Size >= 0 {
			mw.printf("; %*d%s%s\n", sizeWidth, e.Size, strings.Repeat(" ", sizeNameColumn-sizeFieldEnd), name)
		}
		if e.Hash != "" {
			mw.printf("%s %s\n", name, e.Hash)
		} else {
			mw.printf("%s\n", name)
		}
	}

	if mw.err != nil {
		return mw.err
	}
	return bw.Flush()
}

type writer struct {
	w      *bufio.Writer
	err    error
	outDir string
	alg    types.Algorithm
	dir    string
}

func (mw *writer) printf(format string, args ...any) {
	if mw.err != nil {
		return
	}
	_, mw.err = fmt.Fprintf(mw.w, format, args...)
}

func (mw *writer) setAlgorithm(alg types.Algorithm) {
	mw.alg = alg
	mw.printf("; %s%s\n", AlgorithmKey, alg)
}

func (mw *writer) setDirectory(base string) {
	mw.dir = mw.relative(base)
	mw.printf("; %s%s\n", DirectoryKey, mw.dir)
}

// relative expresses base relative to the output directory when it lies
// inside it. The output directory itself is ".".
func (mw *writer) relative(base string) string {
	b := slashClean(base)
	if b == "" {
		return "."
	}
	if mw.outDir == "" {
		return b
	}
	if b == mw.outDir {
		return "."
	}
	prefix := strings.TrimSuffix(mw.outDir, "/") + "/"
	if strings.HasPrefix(b, prefix) {
		return b[len(prefix):]
	}
	return b
}

func (mw *writer) entryPath(rel string) string {
	rel = filepath.ToSlash(rel)
	if mw.dir == "." {
		return rel
	}
	return strings.TrimSuffix(mw.dir, "/") + "/" + rel
}

// quoteName quotes names with blanks and names a reader would take for a
// comment.
func quoteName(name string) string {
	if strings.ContainsAny(name, " \t") || strings.HasPrefix(name, ";") {
		return `"` + name + `"`
	}
	return name
}

func slashClean(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}

func firstAlgorithm(entries []types.FileEntry) types.Algorithm {
	for _, e := range entries {
		if e.Hash != "" && e.Algorithm != "" {
			return e.Algorithm
		}
	}
	return DefaultAlgorithm
}
