// Lower transport framing: segmentation of upper transport PDUs and
// parsing of received lower transport PDUs (Mesh Profile 3.5.2).

package transport

import "encoding/binary"

// Lower transport capacity limits (Mesh Profile 3.5.2). Segmentation is
// decided once from the total upper PDU length; boundaries are
// deterministic and only the last segment may be short.
const (
	// MaxUnsegmentedAccess is the largest ciphertext+TransMIC carried by
	// a single unsegmented access PDU.
	MaxUnsegmentedAccess = 15

	// AccessSegmentSize is the fixed segment size of segmented access
	// PDUs.
	AccessSegmentSize = 12

	// MaxUnsegmentedControl is the largest parameter block carried by a
	// single unsegmented control PDU.
	MaxUnsegmentedControl = 11

	// ControlSegmentSize is the fixed segment size of segmented control
	// PDUs.
	ControlSegmentSize = 8

	// maxSegments is SegN+1 with SegN occupying 5 bits.
	maxSegments = 32

	// seqZeroMask extracts the 13-bit SeqZero field.
	seqZeroMask = 0x1fff

	// ackOpcode is the control opcode reserved for segment
	// acknowledgements.
	ackOpcode = 0x00
)

// PDU is the closed set of parsed lower transport PDUs.
type PDU interface {
	pdu()
}

// UnsegmentedAccess is a complete access message in one PDU; Data is
// ciphertext plus 32-bit TransMIC.
type UnsegmentedAccess struct {
	AKF  bool
	AID  byte
	Data []byte
}

func (UnsegmentedAccess) pdu() {}

// SegmentedAccess is one segment of a segmented access message.
type SegmentedAccess struct {
	AKF     bool
	AID     byte
	SZMIC   bool
	SeqZero uint16
	SegO    uint8
	SegN    uint8
	Data    []byte
}

func (SegmentedAccess) pdu() {}

// UnsegmentedControl is a complete control message in one PDU.
type UnsegmentedControl struct {
	Opcode uint8
	Data   []byte
}

func (UnsegmentedControl) pdu() {}

// SegmentedControl is one segment of a segmented control message.
type SegmentedControl struct {
	Opcode  uint8
	SeqZero uint16
	SegO    uint8
	SegN    uint8
	Data    []byte
}

func (SegmentedControl) pdu() {}

// SegmentAck is a parsed segment acknowledgement.
type SegmentAck struct {
	OBO      bool
	SeqZero  uint16
	BlockAck uint32
}

func (SegmentAck) pdu() {}

// Acked reports whether the segment with the given index is acknowledged.
func (a SegmentAck) Acked(segO uint8) bool {
	return segO < 32 && a.BlockAck&(1<<segO) != 0
}

// ParsePDU parses a lower transport PDU extracted from a network PDU.
// ctl is the network header CTL bit. Malformed input is rejected whole;
// no partial parse is returned.
func ParsePDU(ctl bool, data []byte) (PDU, error) {
	if len(data) < 1 {
		return nil, ErrMalformedFrame
	}

	seg := data[0]&0x80 != 0
	if ctl {
		opcode := data[0] & 0x7f
		switch {
		case !seg && opcode == ackOpcode:
			ack, err := parseSegmentAck(data[1:])
			if err != nil {
				return nil, err
			}
			return ack, nil
		case !seg:
			return UnsegmentedControl{Opcode: opcode, Data: data[1:]}, nil
		default:
			if opcode == ackOpcode {
				return nil, ErrMalformedFrame
			}
			seqZero, segO, segN, payload, err := parseSegmentHeader(data[1:])
			if err != nil {
				return nil, err
			}
			return SegmentedControl{
				Opcode:  opcode,
				SeqZero: seqZero,
				SegO:    segO,
				SegN:    segN,
				Data:    payload,
			}, nil
		}
	}

	akf := data[0]&0x40 != 0
	aid := data[0] & 0x3f
	if !seg {
		// An unsegmented access PDU carries at least a 32-bit TransMIC.
		if len(data)-1 < 5 {
			return nil, ErrMalformedFrame
		}
		return UnsegmentedAccess{AKF: akf, AID: aid, Data: data[1:]}, nil
	}

	header := data[1:]
	szmic := len(header) > 0 && header[0]&0x80 != 0
	seqZero, segO, segN, payload, err := parseSegmentHeader(header)
	if err != nil {
		return nil, err
	}
	return SegmentedAccess{
		AKF:     akf,
		AID:     aid,
		SZMIC:   szmic,
		SeqZero: seqZero,
		SegO:    segO,
		SegN:    segN,
		Data:    payload,
	}, nil
}

// parseSegmentHeader decodes the 24-bit SeqZero/SegO/SegN field shared by
// segmented access and control PDUs.
func parseSegmentHeader(data []byte) (seqZero uint16, segO, segN uint8, payload []byte, err error) {
	if len(data) < 4 {
		return 0, 0, 0, nil, ErrMalformedFrame
	}
	header := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	seqZero = uint16(header>>10) & seqZeroMask
	segO = uint8(header>>5) & 0x1f
	segN = uint8(header) & 0x1f
	if segO > segN {
		return 0, 0, 0, nil, ErrMalformedFrame
	}
	return seqZero, segO, segN, data[3:], nil
}

func parseSegmentAck(data []byte) (SegmentAck, error) {
	if len(data) != 6 {
		return SegmentAck{}, ErrMalformedFrame
	}
	header := binary.BigEndian.Uint16(data[0:2])
	if header&0x03 != 0 {
		// RFU bits must be zero.
		return SegmentAck{}, ErrMalformedFrame
	}
	return SegmentAck{
		OBO:      header&0x8000 != 0,
		SeqZero:  header >> 2 & seqZeroMask,
		BlockAck: binary.BigEndian.Uint32(data[2:6]),
	}, nil
}

func unsegmentedAccessPDU(akf bool, aid byte, upper []byte) []byte {
	pdu := make([]byte, 1+len(upper))
	pdu[0] = accessHeader(false, akf, aid)
	copy(pdu[1:], upper)
	return pdu
}

func segmentedAccessPDUs(akf bool, aid byte, szmic bool, seqZero uint16, upper []byte) ([][]byte, error) {
	return splitSegments(accessHeader(true, akf, aid), szmic, seqZero, AccessSegmentSize, upper)
}

func segmentedControlPDUs(opcode byte, seqZero uint16, payload []byte) ([][]byte, error) {
	return splitSegments(0x80|opcode, false, seqZero, ControlSegmentSize, payload)
}

// splitSegments slices data into fixed-size segments, each prefixed with
// the shared first octet and the SeqZero/SegO/SegN header.
func splitSegments(octet0 byte, szmic bool, seqZero uint16, segmentSize int, data []byte) ([][]byte, error) {
	segN := (len(data) - 1) / segmentSize
	if segN >= maxSegments {
		return nil, ErrPayloadTooLong
	}

	pdus := make([][]byte, 0, segN+1)
	for segO := 0; segO <= segN; segO++ {
		chunk := data[segO*segmentSize:]
		if len(chunk) > segmentSize {
			chunk = chunk[:segmentSize]
		}

		header := uint32(seqZero&seqZeroMask)<<10 | uint32(segO)<<5 | uint32(segN)
		if szmic {
			header |= 1 << 23
		}

		pdu := make([]byte, 4+len(chunk))
		pdu[0] = octet0
		pdu[1] = byte(header >> 16)
		pdu[2] = byte(header >> 8)
		pdu[3] = byte(header)
		copy(pdu[4:], chunk)
		pdus = append(pdus, pdu)
	}
	return pdus, nil
}

func accessHeader(seg, akf bool, aid byte) byte {
	b := aid & 0x3f
	if akf {
		b |= 0x40
	}
	if seg {
		b |= 0x80
	}
	return b
}
