package rsync

import "math/bits"

// Md4Size is the length in bytes of an MD4 digest.
const Md4Size = 16

// md4InitialState holds the four initial 32-bit words of MD4's internal
// state, as specified in RFC 1320.
var md4InitialState = [4]uint32{0x67452301, 0xEFCDAB89, 0x98BADCFE, 0x10325476}

// md4F, md4G, md4H are the three MD4 round functions.
func md4F(x, y, z uint32) uint32 { return (x & y) | (^x & z) }
func md4G(x, y, z uint32) uint32 { return (x & y) | (x & z) | (y & z) }
func md4H(x, y, z uint32) uint32 { return x ^ y ^ z }

// md4Op1, md4Op2, md4Op3 implement the three MD4 rounds' mixing step. They
// are written as free functions (rather than inlined into processBlock) so
// that the lane-parallel implementation in md4_simd.go can share the exact
// same arithmetic, word for word, against N independent states at once.
func md4Op1(a, b, c, d, k uint32, s int) uint32 {
	return bits.RotateLeft32(a+md4F(b, c, d)+k, s)
}

func md4Op2(a, b, c, d, k uint32, s int) uint32 {
	return bits.RotateLeft32(a+md4G(b, c, d)+k+0x5A827999, s)
}

func md4Op3(a, b, c, d, k uint32, s int) uint32 {
	return bits.RotateLeft32(a+md4H(b, c, d)+k+0x6ED9EBA1, s)
}

// md4Round1Order and md4Round3Order are the block-index orderings used in
// rounds 1 and 3. Round 2 takes its sixteen words column-wise: i, i+4, i+8,
// i+12 for i = 0..3.
var md4Round1Order = [4]int{0, 4, 8, 12}
var md4Round3Order = [4]int{0, 2, 1, 3}

// md4ProcessBlock runs the three MD4 rounds over a 16-word message block,
// folding the result into state in place. It is the scalar core shared by
// both md4 (below) and the per-lane update in md4_simd.go.
func md4ProcessBlock(state *[4]uint32, data *[16]uint32) {
	a, b, c, d := state[0], state[1], state[2], state[3]

	for _, i := range md4Round1Order {
		a = md4Op1(a, b, c, d, data[i], 3)
		d = md4Op1(d, a, b, c, data[i+1], 7)
		c = md4Op1(c, d, a, b, data[i+2], 11)
		b = md4Op1(b, c, d, a, data[i+3], 19)
	}

	for i := 0; i < 4; i++ {
		a = md4Op2(a, b, c, d, data[i], 3)
		d = md4Op2(d, a, b, c, data[i+4], 5)
		c = md4Op2(c, d, a, b, data[i+8], 9)
		b = md4Op2(b, c, d, a, data[i+12], 13)
	}

	for _, i := range md4Round3Order {
		a = md4Op3(a, b, c, d, data[i], 3)
		d = md4Op3(d, a, b, c, data[i+8], 9)
		c = md4Op3(c, d, a, b, data[i+4], 11)
		b = md4Op3(b, c, d, a, data[i+12], 15)
	}

	state[0] += a
	state[1] += b
	state[2] += c
	state[3] += d
}

// md4LoadBlock reinterprets a 64-byte message block as sixteen little-endian
// 32-bit words, per RFC 1320.
func md4LoadBlock(block []byte) [16]uint32 {
	var data [16]uint32
	for i := 0; i < 16; i++ {
		o := i * 4
		data[i] = uint32(block[o]) | uint32(block[o+1])<<8 | uint32(block[o+2])<<16 | uint32(block[o+3])<<24
	}
	return data
}

// md4Pad writes the final one or two padded message blocks for a message of
// the given total length, given the trailing remainder (fewer than 64
// bytes) still to be processed. It returns the padded blocks and how many of
// them (1 or 2) are in use.
func md4Pad(remainder []byte, totalLen int) (blocks [2][64]byte, count int) {
	copy(blocks[0][:], remainder)
	blocks[0][len(remainder)] = 0x80
	bitLen := uint64(totalLen) * 8
	if len(remainder) >= 56 {
		putUint64LE(blocks[1][56:64], bitLen)
		return blocks, 2
	}
	putUint64LE(blocks[0][56:64], bitLen)
	return blocks, 1
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Md4 computes the MD4 digest of data. It implements the textbook algorithm:
// three rounds over 64-byte blocks, 0x80 padding, zero-fill, and an 8-byte
// little-endian bit-length trailer.
func Md4(data []byte) [Md4Size]byte {
	state := md4InitialState

	full := len(data) / 64 * 64
	for i := 0; i < full; i += 64 {
		block := md4LoadBlock(data[i : i+64])
		md4ProcessBlock(&state, &block)
	}

	remainder := data[full:]
	padded, count := md4Pad(remainder, len(data))
	for i := 0; i < count; i++ {
		block := md4LoadBlock(padded[i][:])
		md4ProcessBlock(&state, &block)
	}

	var digest [Md4Size]byte
	for i, s := range state {
		o := i * 4
		digest[o] = byte(s)
		digest[o+1] = byte(s >> 8)
		digest[o+2] = byte(s >> 16)
		digest[o+3] = byte(s >> 24)
	}
	return digest
}
