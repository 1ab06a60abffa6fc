// Nonce construction for mesh authenticated encryption.
// This implements the nonce formats from Mesh Profile Section 3.8.5
// (Tables 3.37 through 3.40). Every nonce is exactly 13 bytes; the first
// byte is the nonce type, the remaining layout is fixed per type. The
// builders are pure field-layout functions: selecting which class to use
// is the caller's job (the network layer always uses the network nonce,
// the upper transport picks device vs application by key type).

package crypto

import "encoding/binary"

// Nonce type values (Mesh Profile Table 3.36).
const (
	nonceTypeNetwork     = 0x00
	nonceTypeApplication = 0x01
	nonceTypeDevice      = 0x02
	nonceTypeProxy       = 0x03
)

// NetworkNonce builds the nonce for network layer encryption.
//
// Format: 0x00 || CTL|TTL || SEQ (3) || SRC (2) || 0x0000 || IV Index (4),
// all big-endian. seq is a 24-bit sequence number; this must be the
// sequence number of the individual network PDU being processed.
func NetworkNonce(ctl bool, ttl uint8, seq uint32, src uint16, ivIndex uint32) []byte {
	nonce := make([]byte, NonceSize)
	nonce[0] = nonceTypeNetwork
	nonce[1] = ttl & 0x7f
	if ctl {
		nonce[1] |= 0x80
	}
	putSeq(nonce[2:5], seq)
	binary.BigEndian.PutUint16(nonce[5:7], src)
	// Bytes 7-8 are reserved zero padding.
	binary.BigEndian.PutUint32(nonce[9:13], ivIndex)
	return nonce
}

// ApplicationNonce builds the nonce for application key encryption of
// access payloads. dst may be a unicast, group or virtual address.
//
// Format: 0x01 || ASZMIC|pad || SEQ (3) || SRC (2) || DST (2) || IV Index (4).
// For segmented messages seq is the sequence number of the first segment;
// szmic is set only when a segmented message carries a 64-bit TransMIC.
func ApplicationNonce(szmic bool, seq uint32, src, dst uint16, ivIndex uint32) []byte {
	return upperNonce(nonceTypeApplication, szmic, seq, src, dst, ivIndex)
}

// DeviceNonce builds the nonce for device key encryption of access
// payloads. Layout matches the application nonce except for the type byte.
func DeviceNonce(szmic bool, seq uint32, src, dst uint16, ivIndex uint32) []byte {
	return upperNonce(nonceTypeDevice, szmic, seq, src, dst, ivIndex)
}

// ProxyNonce builds the nonce for proxy configuration messages.
//
// Format: 0x03 || 0x00 || SEQ (3) || SRC (2) || 0x0000 || IV Index (4).
func ProxyNonce(seq uint32, src uint16, ivIndex uint32) []byte {
	nonce := make([]byte, NonceSize)
	nonce[0] = nonceTypeProxy
	putSeq(nonce[2:5], seq)
	binary.BigEndian.PutUint16(nonce[5:7], src)
	binary.BigEndian.PutUint32(nonce[9:13], ivIndex)
	return nonce
}

func upperNonce(nonceType byte, szmic bool, seq uint32, src, dst uint16, ivIndex uint32) []byte {
	nonce := make([]byte, NonceSize)
	nonce[0] = nonceType
	if szmic {
		nonce[1] = 0x80
	}
	putSeq(nonce[2:5], seq)
	binary.BigEndian.PutUint16(nonce[5:7], src)
	binary.BigEndian.PutUint16(nonce[7:9], dst)
	binary.BigEndian.PutUint32(nonce[9:13], ivIndex)
	return nonce
}

// putSeq writes the low 24 bits of seq big-endian.
func putSeq(dst []byte, seq uint32) {
	dst[0] = byte(seq >> 16)
	dst[1] = byte(seq >> 8)
	dst[2] = byte(seq)
}
