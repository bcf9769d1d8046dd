package checksum

import (
	"encoding/binary"
	"hash"
	"sync"
)

// crcPolynomial is the standard CRC-32 generator in normal (MSB-first) form.
const crcPolynomial uint32 = 0x04C11DB7

var (
	crcTableOnce sync.Once
	crcTable     [256]uint32
)

// reflect returns the low bits of v in reverse order.
func reflect(v uint32, bits int) uint32 {
	var out uint32
	for i := 0; i < bits; i++ {
		if v&(1<<uint(i)) != 0 {
			out |= 1 << uint(bits-1-i)
		}
	}
	return out
}

// table returns the lookup table, building it on first use. Each slot is
// computed MSB-first from the reflected index and reflected back, which
// yields the table for the reflected (LSB-first) update below.
func table() *[256]uint32 {
	crcTableOnce.Do(func() {
		for i := range crcTable {
			t := reflect(uint32(i), 8) << 24
			for round := 0; round < 8; round++ {
				if t&(1<<31) != 0 {
					t = (t << 1) ^ crcPolynomial
				} else {
					t <<= 1
				}
			}
			crcTable[i] = reflect(t, 32)
		}
	})
	return &crcTable
}

// crc32Digest is a hash.Hash32 over the table above.
type crc32Digest struct {
	crc uint32
	tab *[256]uint32
}

// NewCRC32 returns a streaming CRC-32 (IEEE, reflected) hash.
func NewCRC32() hash.Hash32 {
	d := &crc32Digest{tab: table()}
	d.Reset()
	return d
}

var _ hash.Hash32 = (*crc32Digest)(nil)

func (d *crc32Digest) Reset() { d.crc = 0xFFFFFFFF }

func (d *crc32Digest) Size() int { return 4 }

func (d *crc32Digest) BlockSize() int { return 1 }

func (d *crc32Digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = (crc >> 8) ^ d.tab[byte(crc)^b]
	}
	d.crc = crc
	return len(p), nil
}

func (d *crc32Digest) Sum32() uint32 { return d.crc ^ 0xFFFFFFFF }

// Sum appends the big-endian checksum so hex encoding matches %08X.
func (d *crc32Digest) Sum(in []byte) []byte {
	return binary.BigEndian.AppendUint32(in, d.Sum32())
}
