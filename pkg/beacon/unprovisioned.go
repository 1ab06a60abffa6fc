package beacon

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Unprovisioned device beacon sizes.
const (
	// unprovisionedPrefixSize is Device UUID (16) || OOB Information (2).
	unprovisionedPrefixSize = 18

	// URIHashSize is the length of the optional URI hash field.
	URIHashSize = 4
)

// UnprovisionedDeviceBeacon advertises an unprovisioned device: its UUID,
// out-of-band information bitmask and an optional 4-byte URI hash.
type UnprovisionedDeviceBeacon struct {
	UUID    uuid.UUID
	OOB     uint16
	URIHash []byte
}

// NewUnprovisionedDeviceBeacon constructs a beacon. uriHash must be nil
// or exactly 4 bytes; any other length fails here, not at pack time.
func NewUnprovisionedDeviceBeacon(deviceUUID uuid.UUID, oob uint16, uriHash []byte) (*UnprovisionedDeviceBeacon, error) {
	if len(uriHash) != 0 && len(uriHash) != URIHashSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrURIHashLength, URIHashSize, len(uriHash))
	}
	return &UnprovisionedDeviceBeacon{
		UUID:    deviceUUID,
		OOB:     oob,
		URIHash: append([]byte(nil), uriHash...),
	}, nil
}

// UnpackUnprovisionedDeviceBeacon parses a beacon frame: an 18-byte fixed
// prefix followed by nothing or a 4-byte URI hash. Any other trailing
// length is rejected whole.
func UnpackUnprovisionedDeviceBeacon(frame []byte) (*UnprovisionedDeviceBeacon, error) {
	if len(frame) < unprovisionedPrefixSize {
		return nil, ErrMalformedFrame
	}

	deviceUUID, err := uuid.FromBytes(frame[0:16])
	if err != nil {
		return nil, ErrMalformedFrame
	}
	oob := binary.BigEndian.Uint16(frame[16:18])

	trailing := frame[unprovisionedPrefixSize:]
	if len(trailing) == 0 {
		return &UnprovisionedDeviceBeacon{UUID: deviceUUID, OOB: oob}, nil
	}
	return NewUnprovisionedDeviceBeacon(deviceUUID, oob, trailing)
}

// Pack encodes the beacon; the exact inverse of unpacking. The URI hash
// length invariant already held at construction.
func (b *UnprovisionedDeviceBeacon) Pack() []byte {
	frame := make([]byte, unprovisionedPrefixSize, unprovisionedPrefixSize+len(b.URIHash))
	copy(frame[0:16], b.UUID[:])
	binary.BigEndian.PutUint16(frame[16:18], b.OOB)
	return append(frame, b.URIHash...)
}
