package rsync

import "golang.org/x/sys/cpu"

// laneWidth is the number of blocks Md4Many hands to its lane path as one
// group. CPU feature detection is a one-time, read-only,
// process-wide decision; we cache it in a package-level variable
// computed at init time rather than probing on every call.
var laneWidth = selectLaneWidth()

// selectLaneWidth picks the widest lane count the current CPU supports:
// AVX2 gets 8 lanes, SSE2 or NEON get 4, and anything else falls back to
// width 1 (meaning Md4Many degrades entirely to the scalar path).
func selectLaneWidth() int {
	switch {
	case cpu.X86.HasAVX2:
		return 8
	case cpu.X86.HasSSE2:
		return 4
	case cpu.ARM64.HasASIMD:
		return 4
	default:
		return 1
	}
}

// md4VerifyEqualLength checks that every block in a lane group is exactly
// the same length, since the transposed load below assumes a single shared
// block/remainder layout across all lanes.
func md4VerifyEqualLength(blocks [][]byte) {
	if len(blocks) == 0 {
		return
	}
	want := len(blocks[0])
	for _, b := range blocks {
		if len(b) != want {
			panic("rsync: md4Many requires all blocks in a batch to be equal length")
		}
	}
}

// md4TransposeLoad reshapes one 64-byte message block from each of N lanes
// into 16 word-vectors, so that word w of lane l lands at data[w][l]. This
// is the "transpose on load" step: on real SIMD hardware it's implemented
// with unpack-low/unpack-high shuffles; here it's the plain array-of-structs
// -> struct-of-arrays reshape in Go code. No SIMD instructions are used.
func md4TransposeLoad(lanes [][]byte, offset int, data *[16][]uint32) {
	n := len(lanes)
	for w := 0; w < 16; w++ {
		vec := data[w]
		o := offset + w*4
		for l := 0; l < n; l++ {
			block := lanes[l]
			vec[l] = uint32(block[o]) | uint32(block[o+1])<<8 | uint32(block[o+2])<<16 | uint32(block[o+3])<<24
		}
	}
}

// md4ProcessBlockLanes runs the three MD4 rounds for each of the N lanes in
// turn, one lane after another (the lanes are not hashed concurrently),
// reusing the exact same per-word mixing functions as the scalar path
// (md4Op1/md4Op2/md4Op3) so that lane and scalar results are bit-identical
// by construction.
func md4ProcessBlockLanes(state *[4][]uint32, data *[16][]uint32) {
	n := len(state[0])
	for l := 0; l < n; l++ {
		a, b, c, d := state[0][l], state[1][l], state[2][l], state[3][l]

		for _, i := range md4Round1Order {
			a = md4Op1(a, b, c, d, data[i][l], 3)
			d = md4Op1(d, a, b, c, data[i+1][l], 7)
			c = md4Op1(c, d, a, b, data[i+2][l], 11)
			b = md4Op1(b, c, d, a, data[i+3][l], 19)
		}

		for i := 0; i < 4; i++ {
			a = md4Op2(a, b, c, d, data[i][l], 3)
			d = md4Op2(d, a, b, c, data[i+4][l], 5)
			c = md4Op2(c, d, a, b, data[i+8][l], 9)
			b = md4Op2(b, c, d, a, data[i+12][l], 13)
		}

		for _, i := range md4Round3Order {
			a = md4Op3(a, b, c, d, data[i][l], 3)
			d = md4Op3(d, a, b, c, data[i+8][l], 9)
			c = md4Op3(c, d, a, b, data[i+4][l], 11)
			b = md4Op3(b, c, d, a, data[i+12][l], 15)
		}

		state[0][l] += a
		state[1][l] += b
		state[2][l] += c
		state[3][l] += d
	}
}

// md4ManyLanes computes the MD4 digest of every block in lanes (which must
// all share the same length) using the lane-parallel path.
func md4ManyLanes(lanes [][]byte) [][Md4Size]byte {
	md4VerifyEqualLength(lanes)
	n := len(lanes)

	var state [4][]uint32
	for i := range state {
		state[i] = make([]uint32, n)
		for l := 0; l < n; l++ {
			state[i][l] = md4InitialState[i]
		}
	}

	var data [16][]uint32
	for i := range data {
		data[i] = make([]uint32, n)
	}

	length := len(lanes[0])
	full := length / 64 * 64
	for offset := 0; offset < full; offset += 64 {
		md4TransposeLoad(lanes, offset, &data)
		md4ProcessBlockLanes(&state, &data)
	}

	remainder := length % 64
	bitLen := uint64(length) * 8
	padded := make([][]byte, n)
	for l := 0; l < n; l++ {
		buf := make([]byte, 64)
		copy(buf, lanes[l][length-remainder:])
		buf[remainder] = 0x80
		if remainder < 56 {
			putUint64LE(buf[56:64], bitLen)
		}
		padded[l] = buf
	}
	md4TransposeLoad(padded, 0, &data)
	md4ProcessBlockLanes(&state, &data)

	if remainder >= 56 {
		for i := range data {
			for l := 0; l < n; l++ {
				data[i][l] = 0
			}
		}
		for l := 0; l < n; l++ {
			data[14][l] = uint32(bitLen)
			data[15][l] = uint32(bitLen >> 32)
		}
		md4ProcessBlockLanes(&state, &data)
	}

	digests := make([][Md4Size]byte, n)
	for l := 0; l < n; l++ {
		for i := 0; i < 4; i++ {
			s := state[i][l]
			o := i * 4
			digests[l][o] = byte(s)
			digests[l][o+1] = byte(s >> 8)
			digests[l][o+2] = byte(s >> 16)
			digests[l][o+3] = byte(s >> 24)
		}
	}
	return digests
}

// Md4Many computes the MD4 digest of every block in blocks, which must all
// be exactly the same length. It dispatches to the widest supported
// lane width for as many full groups as it can, and falls back to the
// scalar path (Md4) for the remaining tail of fewer than laneWidth blocks.
// Input order is preserved and the result is exactly len(blocks) long.
func Md4Many(blocks [][]byte) [][Md4Size]byte {
	digests := make([][Md4Size]byte, len(blocks))
	n := laneWidth
	i := 0
	if n > 1 {
		for ; i+n <= len(blocks); i += n {
			group := blocks[i : i+n]
			lane := md4ManyLanes(group)
			copy(digests[i:i+n], lane)
		}
	}
	for ; i < len(blocks); i++ {
		digests[i] = Md4(blocks[i])
	}
	return digests
}
