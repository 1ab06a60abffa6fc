package beacon

import "errors"

// Beacon layer errors.
var (
	// ErrMalformedFrame is returned for beacon frames with wrong length
	// or reserved bits set.
	ErrMalformedFrame = errors.New("beacon: malformed beacon frame")

	// ErrInvalidNetworkID is returned when packing a secure network
	// beacon whose network ID is not 8 bytes.
	ErrInvalidNetworkID = errors.New("beacon: network ID must be 8 bytes")

	// ErrURIHashLength is returned when a URI hash is neither absent
	// nor exactly 4 bytes, at construction or at parse.
	ErrURIHashLength = errors.New("beacon: invalid URI hash length")
)
