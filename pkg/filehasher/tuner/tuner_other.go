//go:build !darwin && !linux

package tuner

import "runtime"

// defaultTotalRAM is assumed where memory cannot be detected.
const defaultTotalRAM = 8 * 1024 * 1024 * 1024

// Detect reports CPU cores and assumes 8 GiB of RAM, half of it free.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}
