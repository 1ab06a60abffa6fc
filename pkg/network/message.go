// Package network implements the mesh network layer: packing logical
// transport messages into encrypted, obfuscated network PDUs and parsing
// received PDUs back into lower transport PDUs (Mesh Profile 3.4.4
// through 3.4.6).
//
// Raw PDUs arrive from and leave for a radio bridge collaborator; this
// package never performs I/O. Sequence numbers are supplied by the
// caller's allocator, one per physical PDU, and are never generated or
// persisted here.
package network

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/backkem/btmesh/pkg/crypto"
	"github.com/backkem/btmesh/pkg/transport"
)

const (
	// headerSize covers IVI|NID plus the obfuscated CTL|TTL, SEQ and
	// SRC fields.
	headerSize = 7

	// minPDUSize is the shortest valid network PDU: header, encrypted
	// DST, one transport octet and a 32-bit NetMIC.
	minPDUSize = headerSize + 2 + 1 + 4

	// privacyRandomSize is the number of encrypted payload bytes mixed
	// into the obfuscation keystream.
	privacyRandomSize = 7

	// maxSeq is the largest 24-bit sequence number.
	maxSeq = 0xffffff
)

// PDU is one packed network PDU together with the sequence number it
// consumed.
type PDU struct {
	Seq  uint32
	Data []byte
}

// Message wraps one logical transport message for network transmission.
type Message struct {
	Message transport.Message
}

// Pack encodes the message into one or more network PDUs, consuming one
// sequence number per PDU in ascending order starting at seq. key is the
// upper transport key for access messages; control traffic ignores it.
func (m Message) Pack(key crypto.UpperKey, netKey crypto.NetworkKey, seq, ivIndex uint32) ([]PDU, error) {
	return m.pack(key, netKey, seq, seq, ivIndex)
}

// PackRetry re-packs the message for retransmission: the upper transport
// still encrypts under transportSeq (keeping SeqZero and the segment
// ciphertext identical to the original transmission, so the receiver's
// acknowledgement window is undisturbed) while each physical PDU consumes
// a fresh sequence number starting at seq.
func (m Message) PackRetry(key crypto.UpperKey, netKey crypto.NetworkKey, seq, transportSeq, ivIndex uint32) ([]PDU, error) {
	return m.pack(key, netKey, seq, transportSeq, ivIndex)
}

func (m Message) pack(key crypto.UpperKey, netKey crypto.NetworkKey, seq, transportSeq, ivIndex uint32) ([]PDU, error) {
	var (
		src, dst uint16
		ttl      uint8
		ctl      bool
		segments [][]byte
		err      error
	)

	// The message set is closed; CTL and NetMIC size follow the variant.
	switch msg := m.Message.(type) {
	case transport.AccessMessage:
		src, dst, ttl = msg.Src, msg.Dst, msg.TTL
		segments, err = msg.Segments(key, transportSeq, ivIndex)
	case transport.ControlMessage:
		src, dst, ttl, ctl = msg.Src, msg.Dst, msg.TTL, true
		segments, err = msg.Segments(transportSeq)
	case transport.SegmentAckMessage:
		src, dst, ttl, ctl = msg.Src, msg.Dst, msg.TTL, true
		segments = msg.Segments()
	default:
		return nil, ErrUnsupportedMessage
	}
	if err != nil {
		return nil, err
	}

	if seq > maxSeq || maxSeq-seq < uint32(len(segments)-1) {
		return nil, ErrSequenceOverflow
	}

	pdus := make([]PDU, 0, len(segments))
	for i, segment := range segments {
		pduSeq := seq + uint32(i)
		raw, err := encode(netKey, ctl, ttl, pduSeq, src, dst, segment, ivIndex)
		if err != nil {
			return nil, err
		}
		pdus = append(pdus, PDU{Seq: pduSeq, Data: raw})
	}
	return pdus, nil
}

// Unpacked is a parsed and authenticated network PDU. TransportPDU is the
// lower transport PDU for pkg/transport to parse.
type Unpacked struct {
	CTL          bool
	TTL          uint8
	Seq          uint32
	Src          uint16
	Dst          uint16
	TransportPDU []byte
}

// Unpack deobfuscates and decrypts a raw network PDU. ivIndex is the
// receiver's current IV index; the PDU's IVI bit selects between it and
// its predecessor. PDUs from other networks (NID mismatch) return
// ErrUnknownNID without touching the payload; MIC mismatch returns
// crypto.ErrAuthentication.
func Unpack(netKey crypto.NetworkKey, ivIndex uint32, raw []byte) (*Unpacked, error) {
	if len(raw) < minPDUSize {
		return nil, ErrMalformedFrame
	}
	if raw[0]&0x7f != netKey.NID() {
		return nil, ErrUnknownNID
	}

	// The IVI bit carries the low bit of the IV index the sender used.
	ivi := raw[0] >> 7
	if uint32(ivi) != ivIndex&1 {
		if ivIndex == 0 {
			return nil, ErrMalformedFrame
		}
		ivIndex--
	}

	header := make([]byte, 6)
	obfuscate(header, raw[1:7], netKey.PrivacyKey(), ivIndex, raw[7:7+privacyRandomSize])

	ctl := header[0]&0x80 != 0
	ttl := header[0] & 0x7f
	seq := uint32(header[1])<<16 | uint32(header[2])<<8 | uint32(header[3])
	src := binary.BigEndian.Uint16(header[4:6])

	micSize := crypto.MICSizeAccess
	if ctl {
		micSize = crypto.MICSizeControl
	}
	encrypted := raw[headerSize:]
	if len(encrypted) < 2+1+micSize {
		return nil, ErrMalformedFrame
	}

	nonce := crypto.NetworkNonce(ctl, ttl, seq, src, ivIndex)
	plain, err := crypto.AEADDecrypt(
		netKey.EncryptionKey(),
		nonce,
		encrypted[:len(encrypted)-micSize],
		encrypted[len(encrypted)-micSize:],
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &Unpacked{
		CTL:          ctl,
		TTL:          ttl,
		Seq:          seq,
		Src:          src,
		Dst:          binary.BigEndian.Uint16(plain[0:2]),
		TransportPDU: plain[2:],
	}, nil
}

// encode builds one raw network PDU.
func encode(netKey crypto.NetworkKey, ctl bool, ttl uint8, seq uint32, src, dst uint16, transportPDU []byte, ivIndex uint32) ([]byte, error) {
	micSize := crypto.MICSizeAccess
	if ctl {
		micSize = crypto.MICSizeControl
	}

	// Encrypt DST plus the transport PDU under the network nonce.
	plain := make([]byte, 2+len(transportPDU))
	binary.BigEndian.PutUint16(plain[0:2], dst)
	copy(plain[2:], transportPDU)

	nonce := crypto.NetworkNonce(ctl, ttl, seq, src, ivIndex)
	ciphertext, mic, err := crypto.AEADEncrypt(netKey.EncryptionKey(), nonce, plain, nil, micSize)
	if err != nil {
		return nil, err
	}
	encrypted := append(ciphertext, mic...)

	raw := make([]byte, headerSize+len(encrypted))
	raw[0] = byte(ivIndex&1)<<7 | netKey.NID()

	header := make([]byte, 6)
	header[0] = ttl & 0x7f
	if ctl {
		header[0] |= 0x80
	}
	header[1] = byte(seq >> 16)
	header[2] = byte(seq >> 8)
	header[3] = byte(seq)
	binary.BigEndian.PutUint16(header[4:6], src)
	obfuscate(raw[1:7], header, netKey.PrivacyKey(), ivIndex, encrypted[:privacyRandomSize])

	copy(raw[headerSize:], encrypted)
	return raw, nil
}

// obfuscate XORs the six header bytes with the privacy keystream
// PECB = AES(PrivacyKey, 0x0000000000 || IV Index || Privacy Random).
// The operation is its own inverse.
func obfuscate(dst, header, privacyKey []byte, ivIndex uint32, privacyRandom []byte) {
	var input [16]byte
	binary.BigEndian.PutUint32(input[5:9], ivIndex)
	copy(input[9:16], privacyRandom)

	block, _ := aes.NewCipher(privacyKey)
	var pecb [16]byte
	block.Encrypt(pecb[:], input[:])

	for i := 0; i < 6; i++ {
		dst[i] = header[i] ^ pecb[i]
	}
}
