package rsync

// crcMagic is the additive constant folded into both halves of the weak
// checksum. See page 55 of the rsync thesis.
const crcMagic = 31

// Crc is the weak rolling checksum used to cheaply probe the block index
// during the search in Diff. It is a 32-bit value logically split into two
// 16-bit lanes, s1 and s2, which together behave like a degenerate Adler-32.
// Its defining property is that it supports an O(1) window slide via Rotate,
// which is what makes the rolling search in Diff practical: most windows are
// rejected on this cheap 32-bit comparison before ever computing an MD4.
//
// The zero value is the checksum of an empty block.
type Crc uint32

// split breaks a Crc into its two 16-bit lanes.
func (c Crc) split() (uint16, uint16) {
	return uint16(c), uint16(c >> 16)
}

// combineCrc reassembles a Crc from its two 16-bit lanes.
func combineCrc(s1, s2 uint16) Crc {
	return Crc(uint32(s1) | uint32(s2)<<16)
}

// ToBytes serializes the Crc as 4 big-endian bytes, matching the on-wire
// signature format.
func (c Crc) ToBytes() [4]byte {
	return [4]byte{byte(c >> 24), byte(c >> 16), byte(c >> 8), byte(c)}
}

// CrcFromBytes parses a Crc from 4 big-endian bytes.
func CrcFromBytes(b [4]byte) Crc {
	return Crc(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// Update folds an entire block into the checksum in one pass. The inner loop
// is written to be autovectorizable: it touches only wrapping 16-bit adds and
// a wrapping multiply of a byte by a monotonically decreasing index, with the
// constant-crcMagic correction applied once at the end. Implementations that
// want a SIMD-accelerated path should replace this loop; basicUpdate exists
// as a byte-at-a-time reference oracle for testing such replacements.
//
// Update(B1 ++ B2) == Update(B1).Update(B2): Update is associative under
// concatenation, which is what allows Calculate to hash a block in
// one shot and Diff to hash the sliding window in one shot too.
func (c Crc) Update(buf []byte) Crc {
	s1, s2 := c.split()
	length := uint16(len(buf))
	s2 += s1 * length
	for i, b := range buf {
		s1 += uint16(b)
		s2 += uint16(b) * (length - uint16(i))
	}
	n := uint32(len(buf))
	s1 += length * crcMagic
	s2 += uint16(n*(n+1)/2) * crcMagic
	return combineCrc(s1, s2)
}

// basicUpdate is a byte-at-a-time, deliberately non-vectorizable equivalent
// of Update. It exists only as a reference oracle for differential testing
// and must never be used on the hot path.
func (c Crc) basicUpdate(buf []byte) Crc {
	s1, s2 := c.split()
	for _, b := range buf {
		s1 += uint16(b)
		s2 += s1
	}
	length := uint16(len(buf))
	n := uint32(len(buf))
	s1 += length * crcMagic
	s2 += uint16(n*(n+1)/2) * crcMagic
	return combineCrc(s1, s2)
}

// Rollin appends a single byte to the window, as if it had been included in
// the buffer passed to Update.
func (c Crc) Rollin(b byte) Crc {
	s1, s2 := c.split()
	s1 += uint16(b)
	s2 += s1
	s1 += crcMagic
	s2 += crcMagic
	return combineCrc(s1, s2)
}

// Rollout removes the leading byte of a window of the given size. It is the
// inverse of Rollin given the window's current size.
func (c Crc) Rollout(size uint32, oldByte byte) Crc {
	sz := uint16(size)
	old := uint16(oldByte)
	s1, s2 := c.split()
	s1 -= old + crcMagic
	s2 -= sz * (old + crcMagic)
	return combineCrc(s1, s2)
}

// Rotate slides the window forward by one byte: oldByte leaves from the
// front, newByte enters at the back. This is the operation Diff uses to
// advance its search window in O(1) time without rehashing the block.
func (c Crc) Rotate(size uint32, oldByte, newByte byte) Crc {
	sz := uint16(size)
	old := uint16(oldByte)
	nw := uint16(newByte)
	s1, s2 := c.split()
	s1 += nw - old
	s2 += s1 - sz*(old+crcMagic)
	return combineCrc(s1, s2)
}
