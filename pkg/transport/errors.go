package transport

import "errors"

// Transport layer errors.
var (
	// ErrMalformedFrame is returned when a lower transport PDU is too
	// short or carries reserved bit patterns. No partial parse is
	// attempted.
	ErrMalformedFrame = errors.New("transport: malformed lower transport PDU")

	// ErrInvalidOpcode is returned for a control opcode outside the
	// 7-bit space or for the reserved segment-ack opcode 0x00.
	ErrInvalidOpcode = errors.New("transport: invalid control opcode")

	// ErrPayloadTooLong is returned when a payload cannot be carried
	// even by a maximally segmented message.
	ErrPayloadTooLong = errors.New("transport: payload exceeds segmented capacity")

	// ErrIncompleteAssembly is returned by the assembler while segments
	// are still missing; callers keep feeding segments or give up and
	// evict.
	ErrIncompleteAssembly = errors.New("transport: reassembly incomplete, segments missing")

	// ErrInconsistentSegmentation is returned when segments under the
	// same (src, seqZero) key disagree about the segment count or
	// header fields.
	ErrInconsistentSegmentation = errors.New("transport: inconsistent segmentation headers")

	// ErrAssemblyLimit is returned when the assembler's bounded table is
	// full and a segment for a new (src, seqZero) key arrives.
	ErrAssemblyLimit = errors.New("transport: too many in-progress assemblies")

	// ErrNotSegmented is returned when an unsegmented or ack PDU is fed
	// to the assembler.
	ErrNotSegmented = errors.New("transport: PDU is not a segment")
)
