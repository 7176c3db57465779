package rsync

// Delta command opcodes. These match the wire values used by librsync-style
// rsync deltas so that a delta produced here can be replayed by any
// compatible decoder, and vice versa.
const (
	opEnd = 0x00

	// opLiteral1 is the base opcode for an inline-length LITERAL: a LITERAL
	// of length 1..64 is encoded as opLiteral1+length-1, with no separate
	// length field.
	opLiteral1 = 0x01

	// opLiteralN1..opLiteralN8 encode a LITERAL whose length follows the
	// opcode as a 1, 2, 4, or 8-byte big-endian integer, for lengths beyond
	// what the inline form can represent.
	opLiteralN1 = 0x41
	opLiteralN2 = 0x42
	opLiteralN4 = 0x43
	opLiteralN8 = 0x44

	// opCopyN1N1 is the first of sixteen COPY opcodes, one for each
	// combination of offset width and length width (1, 2, 4, or 8 bytes
	// each): opCopyN1N1 + 4*offsetClass + lengthClass, where offsetClass
	// and lengthClass are each 0..3.
	opCopyN1N1 = 0x45
)
