package checksum

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

func TestCRC32KnownVectors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "00000000"},
		{"123456789", "CBF43926"},
		{"hello", "3610A686"},
		{"a", "E8B7BE43"},
		{"The quick brown fox jumps over the lazy dog", "414FA339"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			assert.Equal(t, tt.want, DigestString(types.CRC32, tt.input))
		})
	}
}

func TestCRC32MatchesStdlib(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 64; i++ {
		buf := make([]byte, rng.Intn(4096))
		rng.Read(buf)

		h := NewCRC32()
		_, _ = h.Write(buf)
		assert.Equal(t, crc32.ChecksumIEEE(buf), h.Sum32(), "length %d", len(buf))
	}
}

func TestCRC32TableFirstEntries(t *testing.T) {
	tab := table()
	assert.Equal(t, uint32(0x00000000), tab[0])
	assert.Equal(t, uint32(0x77073096), tab[1])
	assert.Equal(t, uint32(0xEE0E612C), tab[2])
	assert.Equal(t, uint32(0x2D02EF8D), tab[255])
}

func TestCRC32StreamingEqualsOneShot(t *testing.T) {
	data := []byte(strings.Repeat("filehasher", 1000))

	h := NewCRC32()
	for i := 0; i < len(data); i += 7 {
		_, _ = h.Write(data[i:min(i+7, len(data))])
	}
	assert.Equal(t, DigestString(types.CRC32, string(data)), Encode(h.Sum(nil)))

	h.Reset()
	assert.Equal(t, uint32(0), h.Sum32())
}

func TestDigestAlgorithms(t *testing.T) {
	tests := []struct {
		alg   types.Algorithm
		input string
		want  string
	}{
		{types.MD4, "", "31D6CFE0D16AE931B73C59D7E0C089C0"},
		{types.MD4, "abc", "A448017AAF21D8525FC10AE87AA6729D"},
		{types.MD5, "", "D41D8CD98F00B204E9800998ECF8427E"},
		{types.MD5, "abc", "900150983CD24FB0D6963F7D28E17F72"},
		{types.SHA1, "abc", "A9993E364706816ABA3E25717850C26C9CD0D89D"},
		{types.SHA256, "abc", "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD"},
		{types.SHA512, "abc", "DDAF35A193617ABACC417349AE20413112E6FA4E89A97EA20A9EEEE64B55D39A2192992A274FC1A836BA3C23A3FEEBBD454D4423643CE80E2A9AC94FA54CA49F"},
		{types.BLAKE3, "", "AF1349B9F5F9A1A6A0404DEA36DCC9499BCB25C9ADC112B7CC9A93CAE41F3262"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%q", tt.alg, tt.input), func(t *testing.T) {
			got, err := Digest(tt.alg, strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, tt.alg.DigestLen())
		})
	}
}

func TestDigestUnknownAlgorithmFallsBackToMD5(t *testing.T) {
	got, err := Digest(types.Algorithm("TIGER"), strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "900150983CD24FB0D6963F7D28E17F72", got)
}

func TestDigestReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Digest(types.SHA256, iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := DigestFile(path, types.CRC32)
	require.NoError(t, err)
	assert.Equal(t, "3610A686", got)

	big := bytes.Repeat([]byte{0xAB}, 3*DefaultBufferSize+17)
	bigPath := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(bigPath, big, 0o644))

	got, err = DigestFileBuffer(bigPath, types.CRC32, make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%08X", crc32.ChecksumIEEE(big)), got)
}

func TestDigestFileMissing(t *testing.T) {
	_, err := DigestFile(filepath.Join(t.TempDir(), "missing"), types.MD5)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
}
