// Upper transport encryption of access payloads (Mesh Profile 3.6.2).

package transport

import (
	"github.com/google/uuid"

	"github.com/backkem/btmesh/pkg/crypto"
)

// EncryptAccess encrypts an access payload and returns ciphertext with the
// TransMIC appended. The nonce class follows the key type: device nonce
// for a DeviceKey, application nonce for an ApplicationKey. When label is
// non-nil (dst is a virtual address) it becomes the additional
// authenticated data; otherwise the AAD is empty. szmic selects the
// 64-bit TransMIC for segmented messages; unsegmented messages always use
// the 32-bit TransMIC.
func EncryptAccess(key crypto.UpperKey, src, dst uint16, seq, ivIndex uint32, szmic bool, label *uuid.UUID, payload []byte) ([]byte, error) {
	nonce := upperNonce(key, szmic, seq, src, dst, ivIndex)

	var aad []byte
	if label != nil {
		aad = label[:]
	}

	micSize := crypto.MICSizeAccess
	if szmic {
		micSize = crypto.MICSizeControl
	}

	ciphertext, mic, err := crypto.AEADEncrypt(key.Bytes(), nonce, payload, aad, micSize)
	if err != nil {
		return nil, err
	}
	return append(ciphertext, mic...), nil
}

// DecryptAccess reverses EncryptAccess. data is ciphertext plus TransMIC,
// as reassembled from one or more lower transport PDUs; seq is the
// sequence number of the first PDU of the message. It returns
// crypto.ErrAuthentication on MIC mismatch and never retries internally;
// the caller decides whether to drop or request retransmission.
func DecryptAccess(key crypto.UpperKey, src, dst uint16, seq, ivIndex uint32, szmic bool, label *uuid.UUID, data []byte) ([]byte, error) {
	micSize := crypto.MICSizeAccess
	if szmic {
		micSize = crypto.MICSizeControl
	}
	if len(data) < micSize {
		return nil, ErrMalformedFrame
	}

	nonce := upperNonce(key, szmic, seq, src, dst, ivIndex)

	var aad []byte
	if label != nil {
		aad = label[:]
	}

	ciphertext := data[:len(data)-micSize]
	mic := data[len(data)-micSize:]
	return crypto.AEADDecrypt(key.Bytes(), nonce, ciphertext, mic, aad)
}

// upperNonce selects the nonce class by key type. The key set is closed
// (crypto.UpperKey is sealed), so the switch is exhaustive.
func upperNonce(key crypto.UpperKey, szmic bool, seq uint32, src, dst uint16, ivIndex uint32) []byte {
	switch key.(type) {
	case crypto.ApplicationKey:
		return crypto.ApplicationNonce(szmic, seq, src, dst, ivIndex)
	default:
		return crypto.DeviceNonce(szmic, seq, src, dst, ivIndex)
	}
}
