// Package transport implements the mesh upper and lower transport layers:
// end-to-end encryption of access payloads, segmentation of upper
// transport PDUs into lower transport segments, and reassembly of received
// segments. Payloads are treated as opaque byte strings; encoding model
// opcodes and parameters into them is the job of a separate message codec.
package transport

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/kelindar/bitmap"

	"github.com/backkem/btmesh/pkg/crypto"
)

// Message is the closed set of logical messages a network PDU can carry:
// AccessMessage, ControlMessage or SegmentAckMessage. The network layer
// type-switches over the concrete types where CTL and MIC size decisions
// are made.
type Message interface {
	message()
}

// AccessMessage is an upper transport access message carrying an opaque,
// already encoded application payload. Label must be set to the label
// UUID when Dst is a virtual address; it is authenticated alongside the
// payload.
type AccessMessage struct {
	Src     uint16
	Dst     uint16
	TTL     uint8
	Payload []byte
	Label   *uuid.UUID
}

func (AccessMessage) message() {}

// Segments encrypts the payload under key (device nonce for a DeviceKey,
// application nonce for an ApplicationKey) and frames the result into
// lower transport PDUs: a single unsegmented PDU when ciphertext and MIC
// fit, otherwise a deterministic sequence of segments numbered from zero.
// seq is the sequence number of the first PDU; SeqZero is its low 13 bits.
func (m AccessMessage) Segments(key crypto.UpperKey, seq, ivIndex uint32) ([][]byte, error) {
	upper, err := EncryptAccess(key, m.Src, m.Dst, seq, ivIndex, false, m.Label, m.Payload)
	if err != nil {
		return nil, err
	}

	akf, aid := keyID(key)
	if len(upper) <= MaxUnsegmentedAccess {
		return [][]byte{unsegmentedAccessPDU(akf, aid, upper)}, nil
	}
	return segmentedAccessPDUs(akf, aid, false, seqZero(seq), upper)
}

// ControlMessage is a transport control message (e.g. a friend offer).
// The opcode lives in a 7-bit space disjoint from access opcodes; opcode
// 0x00 is reserved for segment acknowledgements. Control payloads are not
// encrypted at the upper transport, only by the network layer.
type ControlMessage struct {
	Src     uint16
	Dst     uint16
	TTL     uint8
	Opcode  uint8
	Payload []byte
}

func (ControlMessage) message() {}

// Segments frames the control payload into lower transport PDUs.
func (m ControlMessage) Segments(seq uint32) ([][]byte, error) {
	if m.Opcode == ackOpcode || m.Opcode > 0x7f {
		return nil, ErrInvalidOpcode
	}
	if len(m.Payload) <= MaxUnsegmentedControl {
		pdu := make([]byte, 1+len(m.Payload))
		pdu[0] = m.Opcode
		copy(pdu[1:], m.Payload)
		return [][]byte{pdu}, nil
	}
	return segmentedControlPDUs(m.Opcode, seqZero(seq), m.Payload)
}

// SegmentAckMessage acknowledges received segments of a prior segmented
// transmission identified by SeqZero. AckSegments holds the indices of
// the segments received so far; OBO marks acknowledgements sent on behalf
// of a low power node by its friend.
type SegmentAckMessage struct {
	Src         uint16
	Dst         uint16
	TTL         uint8
	SeqZero     uint16
	AckSegments bitmap.Bitmap
	OBO         bool
}

func (SegmentAckMessage) message() {}

// NewSegmentAckMessage builds an acknowledgement for the listed segment
// indices.
func NewSegmentAckMessage(src, dst uint16, ttl uint8, seqZero uint16, obo bool, segments ...uint32) SegmentAckMessage {
	var acked bitmap.Bitmap
	for _, s := range segments {
		acked.Set(s)
	}
	return SegmentAckMessage{
		Src:         src,
		Dst:         dst,
		TTL:         ttl,
		SeqZero:     seqZero & seqZeroMask,
		AckSegments: acked,
		OBO:         obo,
	}
}

// Segments frames the acknowledgement; it always fits one PDU.
func (m SegmentAckMessage) Segments() [][]byte {
	pdu := make([]byte, 7)
	pdu[0] = ackOpcode

	header := (m.SeqZero & seqZeroMask) << 2
	if m.OBO {
		header |= 1 << 15
	}
	binary.BigEndian.PutUint16(pdu[1:3], header)
	binary.BigEndian.PutUint32(pdu[3:7], m.blockAck())
	return [][]byte{pdu}
}

// blockAck folds the acknowledged segment set into the 32-bit BlockAck
// field, one bit per segment index.
func (m SegmentAckMessage) blockAck() uint32 {
	var block uint32
	m.AckSegments.Range(func(x uint32) {
		if x < 32 {
			block |= 1 << x
		}
	})
	return block
}

// keyID returns the AKF flag and AID bits for the lower transport header.
func keyID(key crypto.UpperKey) (akf bool, aid byte) {
	switch k := key.(type) {
	case crypto.ApplicationKey:
		return true, k.AID()
	default:
		return false, 0
	}
}

// seqZero extracts the low 13 bits of a sequence number.
func seqZero(seq uint32) uint16 {
	return uint16(seq) & seqZeroMask
}
