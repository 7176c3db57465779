package rsync

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxCrcCollisions bounds how many times a single Crc is allowed to match
// the outer index without its crypto hash actually matching, before Diff
// gives up on that Crc for the rest of the call. Without this cap, an
// adversarial base whose blocks collide in Crc but not MD4 could force an
// expensive MD4 computation at every single window position.
const maxCrcCollisions = 1024

// DiffError is returned by Diff when it cannot compute a delta.
type DiffError struct {
	Reason string
	Cause  error
}

func (e *DiffError) Error() string {
	if e.Cause != nil {
		return "diff: " + e.Reason + ": " + e.Cause.Error()
	}
	return "diff: " + e.Reason
}

func (e *DiffError) Unwrap() error { return e.Cause }

func diffInvalidSignature() *DiffError {
	return &DiffError{Reason: "invalid or unsupported signature for diff"}
}

func diffIOError(err error) *DiffError {
	return &DiffError{Reason: "I/O error while writing delta", Cause: err}
}

// outputState tracks how much of data has been emitted into out so far, and
// coalesces adjacent block matches into a single COPY command rather than
// emitting one per block.
type outputState struct {
	emitted    int
	hasQueued  bool
	queuedOff  uint64
	queuedLen  int
}

// emit flushes any queued copy and then emits data[emitted:until] as a
// LITERAL, advancing emitted to until.
func (st *outputState) emit(until int, data []byte, out io.Writer) error {
	if st.emitted == until {
		return nil
	}
	if st.hasQueued {
		if err := writeCopyCommand(st.queuedOff, uint64(st.queuedLen), out); err != nil {
			return err
		}
		st.emitted += st.queuedLen
		st.hasQueued = false
	}
	if st.emitted < until {
		chunk := data[st.emitted:until]
		if err := writeLiteralCommand(uint64(len(chunk)), out); err != nil {
			return err
		}
		if _, err := out.Write(chunk); err != nil {
			return err
		}
		st.emitted = until
	}
	return nil
}

// queueCopy records a block match, extending the currently queued copy if
// it is exactly contiguous with this one (same base-offset continuation and
// same target-offset continuation), or flushing the old queued copy (and
// any literal gap before it) and starting a new one otherwise.
func (st *outputState) queueCopy(offset uint64, length, here int, data []byte, out io.Writer) error {
	if st.hasQueued && st.emitted+st.queuedLen == here && st.queuedOff+uint64(st.queuedLen) == offset {
		st.queuedLen += length
		return nil
	}
	if err := st.emit(here, data, out); err != nil {
		return err
	}
	st.queuedOff, st.queuedLen, st.hasQueued = offset, length, true
	return nil
}

// writeLiteralCommand picks the smallest LITERAL encoding for length and
// writes its opcode (and, for the long forms, its length field) to out.
// The literal bytes themselves are the caller's responsibility.
func writeLiteralCommand(length uint64, out io.Writer) error {
	switch {
	case length == 0:
		panic("rsync: LITERAL length must be non-zero")
	case length <= 64:
		_, err := out.Write([]byte{byte(opLiteral1 + length - 1)})
		return err
	case length <= 0xFF:
		_, err := out.Write([]byte{opLiteralN1, byte(length)})
		return err
	case length <= 0xFFFF:
		var b [3]byte
		b[0] = opLiteralN2
		binary.BigEndian.PutUint16(b[1:], uint16(length))
		_, err := out.Write(b[:])
		return err
	case length <= 0xFFFFFFFF:
		var b [5]byte
		b[0] = opLiteralN4
		binary.BigEndian.PutUint32(b[1:], uint32(length))
		_, err := out.Write(b[:])
		return err
	default:
		var b [9]byte
		b[0] = opLiteralN8
		binary.BigEndian.PutUint64(b[1:], length)
		_, err := out.Write(b[:])
		return err
	}
}

// varintSizeClass returns the 0..3 size class (1, 2, 4, or 8 bytes) needed
// to represent val as a big-endian varint.
func varintSizeClass(val uint64) byte {
	switch {
	case val <= 0xFF:
		return 0
	case val <= 0xFFFF:
		return 1
	case val <= 0xFFFFFFFF:
		return 2
	default:
		return 3
	}
}

// writeVarint writes val in the big-endian width implied by class (0..3 ->
// 1, 2, 4, 8 bytes).
func writeVarint(val uint64, class byte, out io.Writer) error {
	switch class {
	case 0:
		_, err := out.Write([]byte{byte(val)})
		return err
	case 1:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(val))
		_, err := out.Write(b[:])
		return err
	case 2:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(val))
		_, err := out.Write(b[:])
		return err
	default:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], val)
		_, err := out.Write(b[:])
		return err
	}
}

// writeCopyCommand picks the smallest encoding independently for offset and
// length and writes the COPY opcode plus both varints.
func writeCopyCommand(offset, length uint64, out io.Writer) error {
	if length == 0 {
		panic("rsync: COPY length must be non-zero")
	}
	offsetClass := varintSizeClass(offset)
	lengthClass := varintSizeClass(length)
	opcode := opCopyN1N1 + 4*offsetClass + lengthClass
	if _, err := out.Write([]byte{opcode}); err != nil {
		return err
	}
	if err := writeVarint(offset, offsetClass, out); err != nil {
		return err
	}
	return writeVarint(length, lengthClass, out)
}

// Diff computes a delta that reconstructs data when applied (via Apply) to
// the base data that signature was built from, and writes it to out.
//
// Diff requires signature.Type == SignatureTypeMd4 and CryptoHashSize <=
// Md4Size; any other signature (notably a Blake2 signature, which this
// library can parse but never diff against) produces an InvalidSignature
// DiffError.
func Diff(signature *IndexedSignature, data []byte, out io.Writer) error {
	if signature.Type != SignatureTypeMd4 || signature.CryptoHashSize > Md4Size {
		return diffInvalidSignature()
	}
	blockSize := int(signature.BlockSize)
	hashSize := int(signature.CryptoHashSize)

	if _, err := out.Write(uint32ToBE(deltaMagic)); err != nil {
		return diffIOError(err)
	}

	var state outputState
	here := 0
	collisions := make(map[Crc]uint32)

	for len(data)-here >= blockSize {
		crc := Crc(0).Update(data[here : here+blockSize])

		for {
			tryMatch := collisions[crc] < maxCrcCollisions
			matched := false
			if tryMatch && signature.hasCandidates(crc) {
				digest := Md4(data[here : here+blockSize])
				if idx, ok := signature.lookup(crc, digest[:hashSize]); ok {
					if err := state.queueCopy(uint64(idx)*uint64(blockSize), blockSize, here, data, out); err != nil {
						return diffIOError(err)
					}
					here += blockSize
					matched = true
				} else {
					collisions[crc]++
				}
			}
			if matched {
				break
			}

			here++
			if here+blockSize > len(data) {
				break
			}
			crc = crc.Rotate(uint32(blockSize), data[here-1], data[here+blockSize-1])
		}
	}

	if err := state.emit(len(data), data, out); err != nil {
		return diffIOError(err)
	}
	if _, err := out.Write([]byte{opEnd}); err != nil {
		return diffIOError(err)
	}
	return nil
}

// DiffBytes is a convenience wrapper around Diff for in-memory buffers; it
// allocates a growable buffer, runs Diff, and returns the resulting delta.
// Since []byte writes never fail, any returned error indicates a genuinely
// invalid signature.
func DiffBytes(signature *IndexedSignature, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Diff(signature, data, &buf); err != nil {
		return nil, errors.Wrap(err, "unable to compute delta")
	}
	return buf.Bytes(), nil
}

func uint32ToBE(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
