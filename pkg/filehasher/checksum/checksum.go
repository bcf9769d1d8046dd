// Package checksum computes file digests for every supported algorithm.
// CRC-32 is implemented here from its lookup table; MD4 comes from
// golang.org/x/crypto, BLAKE3 from zeebo/blake3 and the rest from the
// standard library. All digests are returned as uppercase hex.
package checksum

import (
	"crypto/md5"  //nolint:gosec // MD5 is a manifest format, not a security boundary
	"crypto/sha1" //nolint:gosec // same as above
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/md4" //nolint:staticcheck // MD4 is required by legacy manifests

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// DefaultBufferSize is the read buffer used when none is given.
const DefaultBufferSize = 64 * 1024

// New returns a fresh hash for alg. Unknown algorithms fall back to MD5.
func New(alg types.Algorithm) hash.Hash {
	switch alg {
	case types.CRC32:
		return NewCRC32()
	case types.MD4:
		return md4.New()
	case types.SHA1:
		return sha1.New() //nolint:gosec
	case types.SHA256:
		return sha256.New()
	case types.SHA512:
		return sha512.New()
	case types.BLAKE3:
		return blake3.New()
	default:
		return md5.New() //nolint:gosec
	}
}

// Encode formats a raw digest as uppercase hex.
func Encode(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}

// Digest streams r through alg and returns the uppercase hex digest.
// Read failures are returned as-is; DigestFile wraps them as IOError.
func Digest(alg types.Algorithm, r io.Reader) (string, error) {
	return DigestBuffer(alg, r, nil)
}

// DigestBuffer is Digest with a caller-provided read buffer.
func DigestBuffer(alg types.Algorithm, r io.Reader, buf []byte) (string, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	h := New(alg)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return Encode(h.Sum(nil)), nil
}

// DigestString hashes s. Handy for tests and small inputs.
func DigestString(alg types.Algorithm, s string) string {
	h := New(alg)
	_, _ = io.WriteString(h, s)
	return Encode(h.Sum(nil))
}

// DigestFile hashes the file at path. Open and read failures are returned
// as *types.IOError.
func DigestFile(path string, alg types.Algorithm) (string, error) {
	return DigestFileBuffer(path, alg, nil)
}

// DigestFileBuffer is DigestFile with a caller-provided read buffer.
func DigestFileBuffer(path string, alg types.Algorithm, buf []byte) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", types.NewIOError("open", path, err)
	}
	defer f.Close()

	digest, err := DigestBuffer(alg, f, buf)
	if err != nil {
		return "", types.NewIOError("read", path, err)
	}
	return digest, nil
}
