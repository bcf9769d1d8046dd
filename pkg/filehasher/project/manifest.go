package project

import (
	"io"
	"path/filepath"

	"github.com/jamesainslie/filehasher/pkg/filehasher/manifest"
	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// Load replaces the rows with the entries of the manifest at path.
// Lines that could only be partially parsed are returned as warnings in
// the result; the entries recovered from them are loaded.
func (p *Project) Load(path string) (*manifest.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return nil, types.ErrLockContention
	}

	res, err := manifest.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := p.reg.Clear(); err != nil {
		return nil, err
	}
	if !p.reg.TryLock() {
		return nil, types.ErrLockContention
	}
	defer p.reg.Unlock()

	settings := p.settings
	settings.ScanImmediately = false
	if alg := firstHashedAlgorithm(res.Entries); alg != "" {
		settings.Algorithm = alg
	}
	if err := p.reg.Begin(settings, nil); err != nil {
		return nil, err
	}
	if err := p.reg.Submit(res.Entries, true); err != nil {
		return nil, err
	}
	p.reg.AdditionFinished()

	p.settings.Algorithm = settings.Algorithm
	p.basePath = filepath.Dir(path)
	if len(res.Entries) > 0 {
		p.basePath = res.Entries[0].BasePath
	}
	for _, w := range res.Warnings {
		logger.Warn("manifest line recovered", "path", path, "line", w.Line, "reason", w.Reason)
	}
	return res, nil
}

// Save writes the rows to a manifest at path. The container is picked
// from the extension.
func (p *Project) Save(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	rows := p.reg.Snapshot()
	return manifest.WriteFile(path, rows, p.writeOptionsLocked(rows, ""))
}

// Export writes the rows as an uncompressed manifest to w. Paths below
// outputDir are written relative to it.
func (p *Project) Export(w io.Writer, outputDir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busyLocked() {
		return types.ErrLockContention
	}
	rows := p.reg.Snapshot()
	return manifest.Write(w, rows, p.writeOptionsLocked(rows, outputDir))
}

func (p *Project) writeOptionsLocked(rows []types.FileEntry, outputDir string) manifest.WriteOptions {
	alg := firstHashedAlgorithm(rows)
	if alg == "" {
		alg = p.settings.Algorithm
	}
	return manifest.WriteOptions{
		Algorithm: alg,
		BasePath:  p.basePath,
		OutputDir: outputDir,
		Version:   p.opts.Version,
	}
}

func firstHashedAlgorithm(rows []types.FileEntry) types.Algorithm {
	for _, e := range rows {
		if e.Hash != "" && e.Algorithm != "" {
			return e.Algorithm
		}
	}
	return ""
}
