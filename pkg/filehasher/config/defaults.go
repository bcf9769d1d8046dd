// Package config provides configuration management for filehasher.
package config

import "github.com/jamesainslie/filehasher/pkg/filehasher/types"

// Default configuration values.
const (
	// DefaultAlgorithm is used for primary digests.
	DefaultAlgorithm = types.CRC32

	// DefaultBufferSize is the per-worker read buffer.
	DefaultBufferSize = "1MiB"

	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 30

	// DefaultFormat is the report format.
	DefaultFormat = "plain"

	// AppName names the XDG subdirectories.
	AppName = "filehasher"
)

// DefaultExclusions are never hashed.
var DefaultExclusions = []string{
	".DS_Store",
	"Thumbs.db",
}
