package rsync

import (
	"math/rand"
	"testing"
)

// TestSignatureRoundTrip verifies Deserialize(Calculate(buf, opts).Serialized())
// reproduces the same signature.
func TestSignatureRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	buf := randomBuffer(r, 10_000)

	sig := Calculate(buf, SignatureOptions{BlockSize: 512, CryptoHashSize: 8})
	serialized := sig.Serialized()

	parsed, err := Deserialize(serialized)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if parsed.BlockCount() != sig.BlockCount() {
		t.Fatalf("block count mismatch: got %d, want %d", parsed.BlockCount(), sig.BlockCount())
	}
	if parsed.BlockSize != sig.BlockSize || parsed.CryptoHashSize != sig.CryptoHashSize {
		t.Fatalf("header mismatch: got %+v, want %+v", parsed, sig)
	}
	for i, b := range sig.blocks {
		if b.Crc != parsed.blocks[i].Crc {
			t.Fatalf("block %d: crc mismatch", i)
		}
		if string(b.CryptoHash) != string(parsed.blocks[i].CryptoHash) {
			t.Fatalf("block %d: hash mismatch", i)
		}
	}
}

// TestCalculateBlockCount verifies the expected number of blocks is produced
// for both an exact multiple of BlockSize and a trailing short block.
func TestCalculateBlockCount(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	exact := randomBuffer(r, 4096)
	sig := Calculate(exact, SignatureOptions{BlockSize: 512, CryptoHashSize: 8})
	if got, want := sig.BlockCount(), 8; got != want {
		t.Errorf("exact multiple: got %d blocks, want %d", got, want)
	}

	short := randomBuffer(r, 4096+17)
	sig = Calculate(short, SignatureOptions{BlockSize: 512, CryptoHashSize: 8})
	if got, want := sig.BlockCount(), 9; got != want {
		t.Errorf("with remainder: got %d blocks, want %d", got, want)
	}
}

// TestCalculatePanicsOnBadOptions verifies the documented panics for
// malformed SignatureOptions.
func TestCalculatePanicsOnBadOptions(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}
	mustPanic("zero block size", func() {
		Calculate([]byte("hello"), SignatureOptions{BlockSize: 0, CryptoHashSize: 8})
	})
	mustPanic("oversized crypto hash", func() {
		Calculate([]byte("hello"), SignatureOptions{BlockSize: 512, CryptoHashSize: 17})
	})
}

// TestDeserializeRejectsMalformedInput verifies Deserialize returns errors
// rather than panicking on truncated or inconsistent input.
func TestDeserializeRejectsMalformedInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":               {},
		"truncated header":    {0x72, 0x73, 0x01},
		"bad magic":           {0x00, 0x00, 0x00, 0x00, 0, 0, 2, 0, 0, 0, 0, 8},
		"body not a multiple": append([]byte{0x72, 0x73, 0x01, 0x36, 0, 0, 2, 0, 0, 0, 0, 8}, make([]byte, 11)...),
		"zero block size":     {0x72, 0x73, 0x01, 0x36, 0, 0, 0, 0, 0, 0, 0, 8},
	}
	for name, data := range cases {
		if _, err := Deserialize(data); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

// TestIndexLookupFindsAllBlocks verifies every block in a signature can be
// found again via IndexedSignature.lookup using its own (crc, hash) pair.
func TestIndexLookupFindsAllBlocks(t *testing.T) {
	r := rand.New(rand.NewSource(12))
	buf := randomBuffer(r, 20_000)
	sig := Calculate(buf, SignatureOptions{BlockSize: 256, CryptoHashSize: 8})
	idx := sig.Index()

	for i, b := range sig.blocks {
		got, ok := idx.lookup(b.Crc, b.CryptoHash)
		if !ok {
			t.Fatalf("block %d: not found in index", i)
		}
		if int(got) != i {
			t.Fatalf("block %d: index returned block %d instead", i, got)
		}
	}
}

// TestIndexFirstOccurrenceWins verifies that when two blocks share both a
// Crc and a truncated crypto hash, the earlier block index is what the
// index resolves to (the Open Question decision recorded in DESIGN.md).
func TestIndexFirstOccurrenceWins(t *testing.T) {
	block := make([]byte, 64)
	for i := range block {
		block[i] = byte(i)
	}
	buf := append(append([]byte{}, block...), block...)
	sig := Calculate(buf, SignatureOptions{BlockSize: 64, CryptoHashSize: 8})
	idx := sig.Index()

	got, ok := idx.lookup(sig.blocks[0].Crc, sig.blocks[0].CryptoHash)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != 0 {
		t.Errorf("expected first occurrence (block 0) to win, got block %d", got)
	}
}
