package manifest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jamesainslie/filehasher/pkg/filehasher/logging"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

var logger = logging.Get("manifest")

// Compression is the container a manifest file is stored in.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

// CompressionFor picks the container from the file extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// ReadFile reads the manifest at path. Relative base paths in the file are
// resolved against the manifest's directory, so entries come back with
// absolute BasePath values.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	defer f.Close()

	r, closeFn, err := decompress(f, CompressionFor(path))
	if err != nil {
		return nil, types.NewIOError("decompress", path, err)
	}
	defer closeFn()

	res, err := Read(r)
	if err != nil {
		return nil, types.NewIOError("read", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		dir = filepath.Dir(path)
	}
	for i := range res.Entries {
		res.Entries[i].BasePath = resolveBase(dir, res.Entries[i].BasePath)
	}

	logger.Info("manifest read", "path", path, "entries", len(res.Entries), "warnings", len(res.Warnings))
	return res, nil
}

func resolveBase(manifestDir, base string) string {
	if base == "" || base == "." {
		return manifestDir
	}
	base = filepath.FromSlash(base)
	if filepath.IsAbs(base) {
		return base
	}
	return filepath.Join(manifestDir, base)
}

// WriteFile writes entries to path atomically. OutputDir defaults to the
// directory of path.
func WriteFile(path string, entries []types.FileEntry, opts WriteOptions) (err error) {
	dir := filepath.Dir(path)
	if opts.OutputDir == "" {
		if abs, absErr := filepath.Abs(dir); absErr == nil {
			opts.OutputDir = abs
		} else {
			opts.OutputDir = dir
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return types.NewIOError("create", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w, finish, err := compress(tmp, CompressionFor(path))
	if err != nil {
		return types.NewIOError("compress", path, err)
	}
	if err = Write(w, entries, opts); err != nil {
		return types.NewIOError("write", path, err)
	}
	if err = finish(); err != nil {
		return types.NewIOError("compress", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return types.NewIOError("sync", path, err)
	}
	if err = tmp.Close(); err != nil {
		return types.NewIOError("close", path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return types.NewIOError("chmod", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return types.NewIOError("rename", path, err)
	}

	logger.Info("manifest written", "path", path, "entries", len(entries))
	return nil
}

func decompress(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

func compress(w io.Writer, c Compression) (io.Writer, func() error, error) {
	switch c {
	case Gzip:
		zw := gzip.NewWriter(w)
		return zw, zw.Close, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	default:
		return w, func() error { return nil }, nil
	}
}

// IsNotExist reports whether err means the manifest file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// String names the container.
func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}
