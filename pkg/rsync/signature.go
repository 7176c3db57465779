package rsync

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SignatureType identifies the strong-hash algorithm a Signature was built
// with. This library only ever builds Md4 signatures, but it recognizes the
// Blake2 magic when parsing so that foreign signatures can at least be
// inspected: Blake2 signatures are legal to parse but Diff must reject them.
type SignatureType int

const (
	// SignatureTypeMd4 indicates an MD4-based signature.
	SignatureTypeMd4 SignatureType = iota
	// SignatureTypeBlake2 indicates a Blake2-based signature. This library
	// can parse but not diff against such signatures.
	SignatureTypeBlake2
)

const (
	signatureMagicMd4    uint32 = 0x72730136
	signatureMagicBlake2 uint32 = 0x72730137
	deltaMagic           uint32 = 0x72730236
	signatureHeaderSize         = 12
)

// SignatureOptions configures Calculate.
type SignatureOptions struct {
	// BlockSize is the granularity of the signature. Smaller block sizes
	// yield larger but more precise signatures. Must be greater than 0.
	BlockSize uint32
	// CryptoHashSize is the number of bytes to retain from each block's MD4
	// digest. Larger values make a delta less likely to be mis-applied due
	// to a hash collision. Must be at most Md4Size (16).
	CryptoHashSize uint32
}

// blockSignature is the signature of a single block: its weak checksum and
// its (possibly truncated) strong hash. CryptoHash aliases a slice of the
// owning Signature's serialized buffer rather than holding its own copy.
type blockSignature struct {
	Crc        Crc
	CryptoHash []byte
}

// Signature is a compact per-block digest of a base buffer. It retains both
// its parsed fields and the original serialized bytes; the per-block
// CryptoHash slices reference into that buffer rather than copying it.
type Signature struct {
	Type           SignatureType
	BlockSize      uint32
	CryptoHashSize uint32

	blocks []blockSignature
	raw    []byte
}

// InvalidSignatureError is returned by Deserialize when its input is not a
// well-formed signature.
type InvalidSignatureError struct {
	Reason string
}

func (e *InvalidSignatureError) Error() string {
	return "invalid or unsupported signature: " + e.Reason
}

// Calculate computes the signature of buf using the given options. It
// panics if options.BlockSize is 0 or options.CryptoHashSize exceeds
// Md4Size; both are contract violations rather than recoverable errors.
//
// Calculate uses the lane-parallel Md4Many path for every full-sized block
// (they're all equal length by construction) and the scalar Md4 for the
// trailing short block, if any.
func Calculate(buf []byte, options SignatureOptions) *Signature {
	if options.BlockSize == 0 {
		panic("rsync: SignatureOptions.BlockSize must be greater than 0")
	}
	if options.CryptoHashSize > Md4Size {
		panic("rsync: SignatureOptions.CryptoHashSize must be at most 16")
	}

	blockSize := int(options.BlockSize)
	hashSize := int(options.CryptoHashSize)
	recordSize := 4 + hashSize

	fullCount := len(buf) / blockSize
	remainder := buf[fullCount*blockSize:]
	numBlocks := fullCount
	if len(remainder) > 0 {
		numBlocks++
	}

	raw := make([]byte, signatureHeaderSize+numBlocks*recordSize)
	binary.BigEndian.PutUint32(raw[0:4], signatureMagicMd4)
	binary.BigEndian.PutUint32(raw[4:8], options.BlockSize)
	binary.BigEndian.PutUint32(raw[8:12], options.CryptoHashSize)

	fullBlocks := make([][]byte, fullCount)
	for i := 0; i < fullCount; i++ {
		fullBlocks[i] = buf[i*blockSize : (i+1)*blockSize]
	}
	digests := Md4Many(fullBlocks)

	pos := signatureHeaderSize
	for i, block := range fullBlocks {
		writeBlockRecord(raw[pos:pos+recordSize], block, digests[i][:hashSize])
		pos += recordSize
	}
	if len(remainder) > 0 {
		digest := Md4(remainder)
		writeBlockRecord(raw[pos:pos+recordSize], remainder, digest[:hashSize])
	}

	sig, err := parseSignature(raw)
	if err != nil {
		// raw was just constructed above to be well-formed; a parse
		// failure here means this function has a bug, not that the caller
		// supplied bad input.
		panic(errors.Wrap(err, "internal signature construction failure"))
	}
	return sig
}

// writeBlockRecord writes one {crc, hash} record into dst, which
// must be exactly 4+len(hash) bytes.
func writeBlockRecord(dst, block, hash []byte) {
	crc := Crc(0).Update(block)
	b := crc.ToBytes()
	copy(dst[0:4], b[:])
	copy(dst[4:], hash)
}

// Deserialize parses a binary signature. The returned Signature retains
// data directly (no copy): data must outlive the Signature, whose block
// records alias into it. An IndexedSignature built from the Signature
// copies the hashes it needs and carries no such constraint.
func Deserialize(data []byte) (*Signature, error) {
	return parseSignature(data)
}

// parseSignature implements the shared parsing logic used by both
// Deserialize and Calculate.
func parseSignature(data []byte) (*Signature, error) {
	if len(data) < signatureHeaderSize {
		return nil, &InvalidSignatureError{Reason: "truncated header"}
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	var sigType SignatureType
	switch magic {
	case signatureMagicMd4:
		sigType = SignatureTypeMd4
	case signatureMagicBlake2:
		sigType = SignatureTypeBlake2
	default:
		return nil, &InvalidSignatureError{Reason: "bad magic"}
	}
	blockSize := binary.BigEndian.Uint32(data[4:8])
	if blockSize == 0 {
		return nil, &InvalidSignatureError{Reason: "zero block size"}
	}
	cryptoHashSize := binary.BigEndian.Uint32(data[8:12])

	body := data[signatureHeaderSize:]
	recordSize := 4 + int(cryptoHashSize)
	if len(body)%recordSize != 0 {
		return nil, &InvalidSignatureError{Reason: "body size is not a multiple of the record size"}
	}

	numBlocks := len(body) / recordSize
	blocks := make([]blockSignature, numBlocks)
	pos := 0
	for i := 0; i < numBlocks; i++ {
		var crcBytes [4]byte
		copy(crcBytes[:], body[pos:pos+4])
		blocks[i] = blockSignature{
			Crc:        CrcFromBytes(crcBytes),
			CryptoHash: body[pos+4 : pos+recordSize],
		}
		pos += recordSize
	}

	return &Signature{
		Type:           sigType,
		BlockSize:      blockSize,
		CryptoHashSize: cryptoHashSize,
		blocks:         blocks,
		raw:            data,
	}, nil
}

// Serialized returns the signature's on-wire representation. The returned
// slice must not be modified; the signature's own block records alias into
// it.
func (s *Signature) Serialized() []byte {
	return s.raw
}

// BlockCount returns the number of blocks described by the signature.
func (s *Signature) BlockCount() int {
	return len(s.blocks)
}

// IndexedSignature is a Signature indexed for use by Diff: a two-level
// table, Crc -> crypto-hash prefix -> block index. The crypto-hash keys are
// copied into owned strings at construction, so the index does not retain
// the Signature (or its serialized buffer) beyond Index returning.
type IndexedSignature struct {
	Type           SignatureType
	BlockSize      uint32
	CryptoHashSize uint32

	outer *crcOuterMap
}

// Index builds an IndexedSignature from s. Insertion order follows block
// order; if two blocks share both a Crc and a truncated crypto hash, the
// earliest block index wins (see DESIGN.md for the Open Question this
// resolves) — later duplicates are discarded rather than overwriting.
func (s *Signature) Index() *IndexedSignature {
	outer := newCrcOuterMap(len(s.blocks))
	for i, b := range s.blocks {
		inner := outer.getOrCreate(b.Crc)
		inner.insertIfAbsent(string(b.CryptoHash), uint32(i))
	}
	return &IndexedSignature{
		Type:           s.Type,
		BlockSize:      s.BlockSize,
		CryptoHashSize: s.CryptoHashSize,
		outer:          outer,
	}
}

// lookup resolves a candidate (crc, truncated crypto hash) pair to a block
// index, returning false if there is no match.
func (idx *IndexedSignature) lookup(crc Crc, cryptoHash []byte) (uint32, bool) {
	inner, ok := idx.outer.get(crc)
	if !ok {
		return 0, false
	}
	return inner.get(string(cryptoHash))
}

// hasCandidates reports whether the outer index has any entry at all for
// crc, independent of whether the crypto hash subsequently matches.
func (idx *IndexedSignature) hasCandidates(crc Crc) bool {
	_, ok := idx.outer.get(crc)
	return ok
}
