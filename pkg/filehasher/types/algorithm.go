package types

import (
	"fmt"
	"strings"
)

// Algorithm is a digest algorithm tag as written in manifests.
type Algorithm string

// Supported algorithms.
const (
	CRC32  Algorithm = "CRC32"
	MD4    Algorithm = "MD4"
	MD5    Algorithm = "MD5"
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
	BLAKE3 Algorithm = "BLAKE3"
)

// DefaultAlgorithm is the fallback for unknown tags.
const DefaultAlgorithm = MD5

// Algorithms lists every supported algorithm in display order.
var Algorithms = []Algorithm{CRC32, MD4, MD5, SHA1, SHA256, SHA512, BLAKE3}

// aliases maps normalized spellings to algorithms. Older manifests write
// the SHA family with a dash.
var aliases = map[string]Algorithm{
	"CRC32":   CRC32,
	"CRC-32":  CRC32,
	"MD4":     MD4,
	"MD5":     MD5,
	"SHA1":    SHA1,
	"SHA-1":   SHA1,
	"SHA256":  SHA256,
	"SHA-256": SHA256,
	"SHA512":  SHA512,
	"SHA-512": SHA512,
	"BLAKE3":  BLAKE3,
}

// ParseAlgorithm resolves a tag case-insensitively. Unknown tags return
// DefaultAlgorithm together with an error wrapping ErrUnknownAlgorithm,
// so callers that only want the fallback can ignore the error.
func ParseAlgorithm(s string) (Algorithm, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if alg, ok := aliases[key]; ok {
		return alg, nil
	}
	return DefaultAlgorithm, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// AlgorithmOrDefault is ParseAlgorithm without the error.
func AlgorithmOrDefault(s string) Algorithm {
	alg, _ := ParseAlgorithm(s)
	return alg
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	for _, known := range Algorithms {
		if a == known {
			return true
		}
	}
	return false
}

// String returns the tag.
func (a Algorithm) String() string {
	return string(a)
}

// DigestLen returns the length of the hex digest in characters.
func (a Algorithm) DigestLen() int {
	switch a {
	case CRC32:
		return 8
	case MD4, MD5:
		return 32
	case SHA1:
		return 40
	case SHA256, BLAKE3:
		return 64
	case SHA512:
		return 128
	default:
		return 0
	}
}
