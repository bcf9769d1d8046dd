package tuner

import "github.com/jamesainslie/filehasher/pkg/filehasher/types"

// Pool limits.
const (
	maxWorkers     = 32
	minWalkWorkers = 2
	minHashWorkers = 2
	maxWalkWorkers = 8
)

// Buffer limits. All hash workers' read buffers together may use at most
// bufferMemoryFraction of the available RAM.
const (
	minBufferSize        = 64 * types.KiB
	maxBufferSize        = 1 * types.MiB
	bufferMemoryFraction = 0.01
)

// OptimalConfig holds tuned pool settings.
type OptimalConfig struct {
	// WalkWorkers is the number of directory walking workers.
	WalkWorkers int

	// HashWorkers is the number of files hashed in parallel.
	HashWorkers int

	// BufferSize is the per-worker read buffer in bytes.
	BufferSize int
}

// Calculate derives pool settings from system resources.
//
//   - WalkWorkers: NumCPU clamped to [2, 8]; walking is metadata bound and
//     gains little beyond a handful of workers.
//   - HashWorkers: NumCPU clamped to [2, 32]; digests are CPU bound once
//     the page cache is warm.
//   - BufferSize: 1 MiB unless the workers' buffers would exceed 1% of
//     available RAM, never below 64 KiB.
func Calculate(res SystemResources) OptimalConfig {
	cores := max(res.CPUCores, 1)

	walk := min(max(cores, minWalkWorkers), maxWalkWorkers)
	hash := min(max(cores, minHashWorkers), maxWorkers)

	return OptimalConfig{
		WalkWorkers: walk,
		HashWorkers: hash,
		BufferSize:  bufferSize(res.AvailableRAM, hash),
	}
}

// CalculateWithOverrides applies explicit settings on top of Calculate.
// Values of zero or less keep the calculated value.
func CalculateWithOverrides(res SystemResources, walkWorkers, hashWorkers, bufSize int) OptimalConfig {
	cfg := Calculate(res)
	if walkWorkers > 0 {
		cfg.WalkWorkers = min(walkWorkers, maxWorkers)
	}
	if hashWorkers > 0 {
		cfg.HashWorkers = min(hashWorkers, maxWorkers)
	}
	if bufSize > 0 {
		cfg.BufferSize = bufSize
	}
	return cfg
}

func bufferSize(availableRAM int64, workers int) int {
	budget := int64(float64(availableRAM)*bufferMemoryFraction) / int64(max(workers, 1))
	size := min(max(budget, minBufferSize), maxBufferSize)
	return int(size)
}
