// Package beacon implements mesh beacon frames: authenticated secure
// network beacons (Mesh Profile 3.9.3) and unprovisioned device beacons
// (Mesh Profile 3.9.2). Beacons are standalone frames, independent of the
// network PDU pipeline; the beacon type octet is consumed by the bearer
// before these parsers see the frame.
package beacon

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/backkem/btmesh/pkg/crypto"
)

// Secure network beacon sizes.
const (
	// secureBodySize is the authenticated body: Flags (1) || Network ID
	// (8) || IV Index (4).
	secureBodySize = 13

	// AuthSize is the truncated CMAC authentication value length.
	AuthSize = 8
)

// Flag bits (Mesh Profile Table 3.69).
const (
	flagKeyRefresh = 0x01
	flagIVUpdate   = 0x02
)

// SecureNetworkBeacon announces a network's IV index and key refresh
// state, authenticated with the network key's beacon key.
type SecureNetworkBeacon struct {
	KeyRefresh bool
	IVUpdate   bool
	IVIndex    uint32
	NetworkID  []byte
}

// UnpackSecureNetworkBeacon parses a secure network beacon frame into its
// body and detached 8-byte authentication value. The caller verifies the
// value with Verify against candidate network keys.
func UnpackSecureNetworkBeacon(frame []byte) (*SecureNetworkBeacon, []byte, error) {
	if len(frame) != secureBodySize+AuthSize {
		return nil, nil, ErrMalformedFrame
	}
	flags := frame[0]
	if flags&^(flagKeyRefresh|flagIVUpdate) != 0 {
		return nil, nil, ErrMalformedFrame
	}

	beacon := &SecureNetworkBeacon{
		KeyRefresh: flags&flagKeyRefresh != 0,
		IVUpdate:   flags&flagIVUpdate != 0,
		IVIndex:    binary.BigEndian.Uint32(frame[9:13]),
		NetworkID:  append([]byte(nil), frame[1:9]...),
	}
	auth := append([]byte(nil), frame[secureBodySize:]...)
	return beacon, auth, nil
}

// Pack encodes the beacon body and computes its authentication value
// under key's beacon key. Deterministic for identical inputs.
func (b *SecureNetworkBeacon) Pack(key crypto.NetworkKey) (body, auth []byte, err error) {
	if len(b.NetworkID) != crypto.NetworkIDSize {
		return nil, nil, ErrInvalidNetworkID
	}

	body = make([]byte, secureBodySize)
	if b.KeyRefresh {
		body[0] |= flagKeyRefresh
	}
	if b.IVUpdate {
		body[0] |= flagIVUpdate
	}
	copy(body[1:9], b.NetworkID)
	binary.BigEndian.PutUint32(body[9:13], b.IVIndex)

	mac, err := crypto.AESCMAC(key.BeaconKey(), body)
	if err != nil {
		return nil, nil, err
	}
	return body, mac[:AuthSize], nil
}

// Verify recomputes the authentication value under key's beacon key and
// compares it against auth in constant time.
func (b *SecureNetworkBeacon) Verify(auth []byte, key crypto.NetworkKey) bool {
	_, expected, err := b.Pack(key)
	if err != nil || len(auth) != AuthSize {
		return false
	}
	return subtle.ConstantTimeCompare(auth, expected) == 1
}
