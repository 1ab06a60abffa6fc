package network

import "errors"

// Network layer errors.
var (
	// ErrMalformedFrame is returned for PDUs too short to carry a valid
	// header, payload and NetMIC.
	ErrMalformedFrame = errors.New("network: malformed network PDU")

	// ErrUnknownNID is returned when a PDU's NID does not match the
	// network key; the PDU belongs to a different network and is
	// dropped without decryption.
	ErrUnknownNID = errors.New("network: unknown NID")

	// ErrSequenceOverflow is returned when packing would consume a
	// sequence number beyond the 24-bit space; the caller must trigger
	// an IV index update instead.
	ErrSequenceOverflow = errors.New("network: sequence number space exhausted")

	// ErrUnsupportedMessage is returned for a transport message kind
	// outside the closed Access/Control/SegmentAck set.
	ErrUnsupportedMessage = errors.New("network: unsupported message type")
)
