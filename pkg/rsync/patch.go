package rsync

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WrongMagicError is returned when a delta's header does not start with the
// expected 4-byte magic number.
type WrongMagicError struct{}

func (e *WrongMagicError) Error() string {
	return "rsync: delta has wrong magic number"
}

// UnexpectedEOFError is returned when the delta ends in the middle of a
// command or a literal's data.
type UnexpectedEOFError struct {
	// Reading describes what was being read when the delta ran out (e.g.
	// "opcode", "literal length", "literal data", "copy offset").
	Reading string
	// Expected is how many bytes were needed.
	Expected int
	// Available is how many bytes were actually left.
	Available int
}

func (e *UnexpectedEOFError) Error() string {
	return "rsync: unexpected end of delta while reading " + e.Reading
}

// OutputLimitError is returned by ApplyLimited when applying the delta would
// produce more output than the caller allowed.
type OutputLimitError struct {
	// What names the command that would have exceeded the limit ("literal"
	// or "copy").
	What string
	// Wanted is how many bytes the command needed to write.
	Wanted uint64
	// Available is how much of the limit remained.
	Available uint64
}

func (e *OutputLimitError) Error() string {
	return "rsync: delta " + e.What + " command exceeds output limit"
}

// CopyOutOfBoundsError is returned when a COPY command references a region
// of the base data that doesn't exist.
type CopyOutOfBoundsError struct {
	Offset  uint64
	Len     uint64
	DataLen uint64
}

func (e *CopyOutOfBoundsError) Error() string {
	return "rsync: copy command references data outside the base buffer"
}

// CopyZeroError is returned when a COPY command has a zero length, which is
// never produced by Diff and is not a meaningful instruction.
type CopyZeroError struct{}

func (e *CopyZeroError) Error() string {
	return "rsync: copy command has zero length"
}

// UnknownCommandError is returned when a delta contains an opcode byte that
// doesn't correspond to any known command.
type UnknownCommandError struct {
	Command byte
}

func (e *UnknownCommandError) Error() string {
	return "rsync: unknown delta command"
}

// TrailingDataError is returned when bytes remain in the delta after an END
// command.
type TrailingDataError struct {
	Length int
}

func (e *TrailingDataError) Error() string {
	return "rsync: trailing data after end of delta"
}

// patchCursor walks a delta buffer one command at a time.
type patchCursor struct {
	delta []byte
	pos   int
}

func (c *patchCursor) remaining() int {
	return len(c.delta) - c.pos
}

func (c *patchCursor) readByte(reading string) (byte, error) {
	if c.remaining() < 1 {
		return 0, &UnexpectedEOFError{Reading: reading, Expected: 1, Available: c.remaining()}
	}
	b := c.delta[c.pos]
	c.pos++
	return b, nil
}

// readUint reads a big-endian unsigned integer of the given byte width
// (1, 2, 4, or 8).
func (c *patchCursor) readUint(width int, reading string) (uint64, error) {
	if c.remaining() < width {
		return 0, &UnexpectedEOFError{Reading: reading, Expected: width, Available: c.remaining()}
	}
	var v uint64
	switch width {
	case 1:
		v = uint64(c.delta[c.pos])
	case 2:
		v = uint64(binary.BigEndian.Uint16(c.delta[c.pos:]))
	case 4:
		v = uint64(binary.BigEndian.Uint32(c.delta[c.pos:]))
	case 8:
		v = binary.BigEndian.Uint64(c.delta[c.pos:])
	}
	c.pos += width
	return v, nil
}

// readBytes takes a uint64 count so that a length field decoded straight off
// the wire can be checked against the remaining delta before it's ever
// narrowed to an int; a count wider than the remaining delta always fails
// here rather than overflowing a slice bound.
func (c *patchCursor) readBytes(n uint64, reading string) ([]byte, error) {
	if uint64(c.remaining()) < n {
		return nil, &UnexpectedEOFError{Reading: reading, Expected: int(n), Available: c.remaining()}
	}
	b := c.delta[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return b, nil
}

// sizeClassWidth maps a 0..3 size class to its byte width.
func sizeClassWidth(class int) int {
	return 1 << uint(class)
}

// Apply reconstructs the data that delta encodes relative to base, writing
// the result to out. It is equivalent to ApplyLimited with no output limit.
func Apply(base []byte, delta []byte, out io.Writer) error {
	return applyLimited(base, delta, out, nil)
}

// ApplyLimited is like Apply, but fails with an OutputLimitError rather than
// writing more than limit bytes to out. This bounds the memory/time cost of
// applying a delta from an untrusted source even before the base data is
// consulted.
func ApplyLimited(base []byte, delta []byte, out io.Writer, limit uint64) error {
	return applyLimited(base, delta, out, &limit)
}

func applyLimited(base []byte, delta []byte, out io.Writer, limit *uint64) error {
	c := &patchCursor{delta: delta}

	magicBytes, err := c.readBytes(4, "magic")
	if err != nil {
		return err
	}
	if binary.BigEndian.Uint32(magicBytes) != deltaMagic {
		return &WrongMagicError{}
	}

	var written uint64

	// checkLimit compares against the remaining budget rather than computing
	// written+want, which a 2^64-scale literal length could overflow past the
	// limit check. written never exceeds *limit, so the subtraction is safe.
	checkLimit := func(what string, want uint64) error {
		if limit == nil {
			return nil
		}
		if want > *limit-written {
			return &OutputLimitError{What: what, Wanted: want, Available: *limit - written}
		}
		return nil
	}

	for {
		op, err := c.readByte("opcode")
		if err != nil {
			return err
		}

		switch {
		case op == opEnd:
			if c.remaining() > 0 {
				return &TrailingDataError{Length: c.remaining()}
			}
			return nil

		case op >= opLiteral1 && op <= opLiteral1+63:
			length := uint64(op-opLiteral1) + 1
			if err := checkLimit("literal", length); err != nil {
				return err
			}
			data, err := c.readBytes(length, "literal data")
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			written += length

		case op >= opLiteralN1 && op <= opLiteralN8:
			width := sizeClassWidth(int(op - opLiteralN1))
			length, err := c.readUint(width, "literal length")
			if err != nil {
				return err
			}
			if err := checkLimit("literal", length); err != nil {
				return err
			}
			data, err := c.readBytes(length, "literal data")
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			written += length

		case op >= opCopyN1N1 && op <= opCopyN1N1+15:
			rel := int(op - opCopyN1N1)
			offsetClass, lengthClass := rel/4, rel%4
			offset, err := c.readUint(sizeClassWidth(offsetClass), "copy offset")
			if err != nil {
				return err
			}
			length, err := c.readUint(sizeClassWidth(lengthClass), "copy length")
			if err != nil {
				return err
			}
			if length == 0 {
				return &CopyZeroError{}
			}
			if offset > uint64(len(base)) || length > uint64(len(base))-offset {
				return &CopyOutOfBoundsError{Offset: offset, Len: length, DataLen: uint64(len(base))}
			}
			if err := checkLimit("copy", length); err != nil {
				return err
			}
			if _, err := out.Write(base[offset : offset+length]); err != nil {
				return err
			}
			written += length

		default:
			return &UnknownCommandError{Command: op}
		}
	}
}

// ApplyBytes is a convenience wrapper around Apply for in-memory buffers.
func ApplyBytes(base []byte, delta []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := Apply(base, delta, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
