package crypto

import "errors"

// Crypto layer errors.
var (
	// ErrInvalidKeySize is returned when a key is not 16 bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size, must be 16 bytes")

	// ErrInvalidNonceSize is returned when a nonce is not 13 bytes.
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size, must be 13 bytes")

	// ErrInvalidMICSize is returned when a MIC is not 4 or 8 bytes.
	ErrInvalidMICSize = errors.New("crypto: invalid MIC size, must be 4 or 8 bytes")

	// ErrPlaintextTooLong is returned when a plaintext exceeds the CCM
	// length field capacity.
	ErrPlaintextTooLong = errors.New("crypto: plaintext too long")

	// ErrAuthentication is returned when MIC verification fails on
	// decryption. No plaintext is ever returned alongside it.
	ErrAuthentication = errors.New("crypto: message authentication failed")
)
