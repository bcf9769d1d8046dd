// Package tuner detects CPU and memory and derives worker counts and buffer
// sizes for the scan and hash pools when the configuration leaves them at
// zero.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the free RAM in bytes. On some platforms it is an
	// estimate.
	AvailableRAM int64
}
