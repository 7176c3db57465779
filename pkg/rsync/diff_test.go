package rsync

import (
	"bytes"
	"math/rand"
	"testing"
)

// roundTrip computes a delta from base to target and applies it back to
// base, returning the reconstructed data.
func roundTrip(t *testing.T, base, target []byte, blockSize, hashSize uint32) []byte {
	t.Helper()
	sig := Calculate(base, SignatureOptions{BlockSize: blockSize, CryptoHashSize: hashSize})
	idx := sig.Index()
	delta, err := DiffBytes(idx, target)
	if err != nil {
		t.Fatalf("DiffBytes: %v", err)
	}
	out, err := ApplyBytes(base, delta)
	if err != nil {
		t.Fatalf("ApplyBytes: %v", err)
	}
	return out
}

// TestDiffApplyRoundTripIdentical verifies that diffing a buffer against
// itself and applying the result reproduces the buffer exactly.
func TestDiffApplyRoundTripIdentical(t *testing.T) {
	r := rand.New(rand.NewSource(20))
	for _, length := range []int{0, 1, 511, 512, 513, 4096, 100_000} {
		buf := randomBuffer(r, length)
		got := roundTrip(t, buf, buf, 512, 8)
		if !bytes.Equal(got, buf) {
			t.Errorf("length %d: round trip mismatch", length)
		}
	}
}

// TestDiffApplyRoundTripModified verifies the round trip holds when target
// differs from base by insertions, deletions, and byte changes scattered
// through the buffer.
func TestDiffApplyRoundTripModified(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	base := randomBuffer(r, 50_000)

	target := append([]byte{}, base...)
	target = append(target[:10_000], append(randomBuffer(r, 777), target[10_000:]...)...)
	target = append(target[:30_000:30_000], target[30_500:]...)
	for i := 40_000; i < 40_100 && i < len(target); i++ {
		target[i] ^= 0xFF
	}

	got := roundTrip(t, base, target, 256, 8)
	if !bytes.Equal(got, target) {
		t.Error("round trip did not reproduce the modified target")
	}
}

// TestDiffApplyRoundTripEmptyBase verifies that an empty base still produces
// a valid delta (entirely literals) that reconstructs a non-empty target.
func TestDiffApplyRoundTripEmptyBase(t *testing.T) {
	r := rand.New(rand.NewSource(22))
	target := randomBuffer(r, 2048)
	got := roundTrip(t, nil, target, 512, 8)
	if !bytes.Equal(got, target) {
		t.Error("round trip from empty base failed")
	}
}

// TestDiffRejectsBlake2Signature verifies Diff refuses to operate against a
// signature it didn't build itself when that signature claims the Blake2
// strong-hash type.
func TestDiffRejectsBlake2Signature(t *testing.T) {
	sig := Calculate([]byte("hello world"), SignatureOptions{BlockSize: 4, CryptoHashSize: 8})
	idx := sig.Index()
	idx.Type = SignatureTypeBlake2

	if _, err := DiffBytes(idx, []byte("hello there")); err == nil {
		t.Fatal("expected an error diffing against a Blake2 signature")
	}
}

// TestDiffRejectsOversizedCryptoHashSize verifies Diff rejects a signature
// whose declared crypto hash size is larger than an actual MD4 digest.
func TestDiffRejectsOversizedCryptoHashSize(t *testing.T) {
	sig := Calculate([]byte("hello world"), SignatureOptions{BlockSize: 4, CryptoHashSize: 8})
	idx := sig.Index()
	idx.CryptoHashSize = Md4Size + 1

	if _, err := DiffBytes(idx, []byte("hello there")); err == nil {
		t.Fatal("expected an error for an oversized crypto hash size")
	}
}

// TestDiffCoalescesAdjacentCopies verifies that a target identical to the
// base produces a single COPY command rather than one per block, confirming
// the output-state coalescing in emit/queueCopy actually merges runs.
func TestDiffCoalescesAdjacentCopies(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	buf := randomBuffer(r, 10*512)
	sig := Calculate(buf, SignatureOptions{BlockSize: 512, CryptoHashSize: 8})
	idx := sig.Index()

	delta, err := DiffBytes(idx, buf)
	if err != nil {
		t.Fatalf("DiffBytes: %v", err)
	}

	copyCommands, literalCommands := countCommands(t, delta)
	if copyCommands != 1 {
		t.Errorf("expected exactly 1 coalesced COPY command, found %d", copyCommands)
	}
	if literalCommands != 0 {
		t.Errorf("expected no LITERAL commands for an identical target, found %d", literalCommands)
	}
}

// TestDiffAllLiteralTarget verifies that a target sharing no block with the
// base produces a delta of pure literals (no COPY commands) that still
// reconstructs the target.
func TestDiffAllLiteralTarget(t *testing.T) {
	base := make([]byte, 16384)
	target := bytes.Repeat([]byte{128}, 16384)

	sig := Calculate(base, SignatureOptions{BlockSize: 4096, CryptoHashSize: 8})
	delta, err := DiffBytes(sig.Index(), target)
	if err != nil {
		t.Fatalf("DiffBytes: %v", err)
	}
	copies, _ := countCommands(t, delta)
	if copies != 0 {
		t.Errorf("expected no COPY commands, found %d", copies)
	}

	out, err := ApplyBytes(base, delta)
	if err != nil {
		t.Fatalf("ApplyBytes: %v", err)
	}
	if !bytes.Equal(out, target) {
		t.Error("round trip did not reproduce the target")
	}
}

// TestDiffAdversarialCrcCollisions verifies the per-Crc collision cap: a
// target whose 3000 aligned windows collide with the base's blocks in Crc but
// not in MD4 fails 1024 strong-hash probes before the cap blacklists that
// Crc, and the diff must still terminate and round-trip correctly.
// The two 3-byte blocks used here collide by construction: they have equal
// byte sums and equal position-weighted sums.
func TestDiffAdversarialCrcCollisions(t *testing.T) {
	baseBlock := []byte{0, 2, 0}
	targetBlock := []byte{1, 0, 1}
	if Crc(0).Update(baseBlock) != Crc(0).Update(targetBlock) {
		t.Fatal("test blocks no longer collide in Crc")
	}

	base := bytes.Repeat(baseBlock, 3000)
	target := bytes.Repeat(targetBlock, 3000)

	got := roundTrip(t, base, target, 3, 8)
	if !bytes.Equal(got, target) {
		t.Error("round trip failed under Crc collisions")
	}
}

// countCommands walks a well-formed delta (past its magic header) and counts
// how many COPY and LITERAL commands it contains.
func countCommands(t *testing.T, delta []byte) (copies, literals int) {
	t.Helper()
	c := &patchCursor{delta: delta[4:]}
	for {
		op, err := c.readByte("opcode")
		if err != nil {
			t.Fatalf("malformed delta: %v", err)
		}
		switch {
		case op == opEnd:
			return
		case op >= opLiteral1 && op <= opLiteral1+63:
			literals++
			length := uint64(op-opLiteral1) + 1
			if _, err := c.readBytes(length, "literal data"); err != nil {
				t.Fatalf("malformed delta: %v", err)
			}
		case op >= opLiteralN1 && op <= opLiteralN8:
			literals++
			width := sizeClassWidth(int(op - opLiteralN1))
			length, err := c.readUint(width, "literal length")
			if err != nil {
				t.Fatalf("malformed delta: %v", err)
			}
			if _, err := c.readBytes(length, "literal data"); err != nil {
				t.Fatalf("malformed delta: %v", err)
			}
		case op >= opCopyN1N1 && op <= opCopyN1N1+15:
			copies++
			rel := int(op - opCopyN1N1)
			if _, err := c.readUint(sizeClassWidth(rel/4), "copy offset"); err != nil {
				t.Fatalf("malformed delta: %v", err)
			}
			if _, err := c.readUint(sizeClassWidth(rel%4), "copy length"); err != nil {
				t.Fatalf("malformed delta: %v", err)
			}
		default:
			t.Fatalf("malformed delta: unknown opcode %#x", op)
		}
	}
}
