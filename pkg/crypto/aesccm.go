// AES-CCM implementation for mesh authenticated encryption.
// This implements AES-128-CCM as defined in NIST 800-38C and RFC 3610 with
// the parameters fixed by the Mesh Profile:
//   - Key length: 128 bits (16 bytes)
//   - Nonce length: 13 bytes (so L = 2)
//   - MIC length: 4 bytes (access) or 8 bytes (control, network control,
//     beacons and key material contexts)

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
)

const (
	// KeySize is the AES-128 key size in bytes. Every mesh key (network,
	// application, device) is exactly this long.
	KeySize = 16

	// NonceSize is the AEAD nonce size in bytes mandated by the Mesh
	// Profile for every nonce class.
	NonceSize = 13

	// MICSizeAccess is the TransMIC/NetMIC size for access traffic.
	MICSizeAccess = 4

	// MICSizeControl is the NetMIC size for control traffic.
	MICSizeControl = 8

	// ccmLenSize is the CCM length field size L = 15 - NonceSize.
	ccmLenSize = 2

	// aesBlockSize is the AES block size (always 16 bytes).
	aesBlockSize = 16
)

// AEADEncrypt encrypts and authenticates plaintext under a 16-byte key and
// a 13-byte nonce, producing the ciphertext and a detached MIC of micSize
// bytes (4 or 8). aad is authenticated but not encrypted; for access
// messages it is empty unless the destination is a virtual address, in
// which case it is the 16-byte label UUID.
func AEADEncrypt(key, nonce, plaintext, aad []byte, micSize int) (ciphertext, mic []byte, err error) {
	c, err := newCCM(key, micSize)
	if err != nil {
		return nil, nil, err
	}
	if len(nonce) != NonceSize {
		return nil, nil, ErrInvalidNonceSize
	}
	// L = 2 caps the length field at 16 bits.
	if len(plaintext) > 0xffff {
		return nil, nil, ErrPlaintextTooLong
	}

	tag := c.computeTag(nonce, plaintext, aad)

	// The MIC is the CBC-MAC tag encrypted with the S_0 keystream block.
	s0 := c.keystreamBlock(nonce, 0)
	mic = make([]byte, micSize)
	for i := range mic {
		mic[i] = tag[i] ^ s0[i]
	}

	ciphertext = make([]byte, len(plaintext))
	c.ctrXOR(nonce, ciphertext, plaintext)
	return ciphertext, mic, nil
}

// AEADDecrypt verifies and decrypts ciphertext with its detached MIC.
// It fails closed: on any tag mismatch it returns ErrAuthentication and no
// plaintext. The MIC length selects the tag size (4 or 8 bytes).
func AEADDecrypt(key, nonce, ciphertext, mic, aad []byte) ([]byte, error) {
	c, err := newCCM(key, len(mic))
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}

	plaintext := make([]byte, len(ciphertext))
	c.ctrXOR(nonce, plaintext, ciphertext)

	s0 := c.keystreamBlock(nonce, 0)
	receivedTag := make([]byte, len(mic))
	for i := range receivedTag {
		receivedTag[i] = mic[i] ^ s0[i]
	}

	expectedTag := c.computeTag(nonce, plaintext, aad)
	if subtle.ConstantTimeCompare(receivedTag, expectedTag[:len(mic)]) != 1 {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// ccm is an AES-128-CCM instance with mesh parameters (L = 2).
type ccm struct {
	block   cipher.Block
	tagSize int
}

func newCCM(key []byte, tagSize int) (*ccm, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if tagSize != MICSizeAccess && tagSize != MICSizeControl {
		return nil, ErrInvalidMICSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &ccm{block: block, tagSize: tagSize}, nil
}

// computeTag computes the CBC-MAC authentication tag per NIST 800-38C
// Section 6.1 and RFC 3610 Section 2.2.
func (c *ccm) computeTag(nonce, plaintext, aad []byte) []byte {
	// B_0: Flags || nonce || l(m).
	// Flags = Adata(1 bit) || M' = (tagSize-2)/2 (3 bits) || L' = L-1 (3 bits).
	var b0 [aesBlockSize]byte
	flags := byte(c.tagSize-2)/2<<3 | (ccmLenSize - 1)
	if len(aad) > 0 {
		flags |= 1 << 6
	}
	b0[0] = flags
	copy(b0[1:1+NonceSize], nonce)
	binary.BigEndian.PutUint16(b0[aesBlockSize-ccmLenSize:], uint16(len(plaintext)))

	mac := make([]byte, aesBlockSize)
	c.block.Encrypt(mac, b0[:])

	if len(aad) > 0 {
		// AAD is prefixed with its length; mesh AAD (a label UUID) is
		// always short, so the two-byte encoding suffices.
		var block [aesBlockSize]byte
		binary.BigEndian.PutUint16(block[0:2], uint16(len(aad)))
		n := copy(block[2:], aad)
		remaining := aad[n:]

		for i := range mac {
			mac[i] ^= block[i]
		}
		c.block.Encrypt(mac, mac)

		for len(remaining) > 0 {
			block = [aesBlockSize]byte{}
			n := copy(block[:], remaining)
			remaining = remaining[n:]
			for i := range mac {
				mac[i] ^= block[i]
			}
			c.block.Encrypt(mac, mac)
		}
	}

	remaining := plaintext
	for len(remaining) > 0 {
		var block [aesBlockSize]byte
		n := copy(block[:], remaining)
		remaining = remaining[n:]
		for i := range mac {
			mac[i] ^= block[i]
		}
		c.block.Encrypt(mac, mac)
	}

	return mac[:c.tagSize]
}

// keystreamBlock returns S_i = E(K, A_i) where A_i is the counter block
// with counter value i. S_0 encrypts the tag, S_1.. encrypt the payload.
func (c *ccm) keystreamBlock(nonce []byte, counter uint16) []byte {
	var a [aesBlockSize]byte
	a[0] = ccmLenSize - 1
	copy(a[1:1+NonceSize], nonce)
	binary.BigEndian.PutUint16(a[aesBlockSize-ccmLenSize:], counter)

	s := make([]byte, aesBlockSize)
	c.block.Encrypt(s, a[:])
	return s
}

// ctrXOR encrypts/decrypts src into dst using CTR mode starting at
// counter 1 (NIST 800-38C Appendix A.3).
func (c *ccm) ctrXOR(nonce []byte, dst, src []byte) {
	counter := uint16(1)
	for i := 0; i < len(src); i += aesBlockSize {
		keystream := c.keystreamBlock(nonce, counter)
		counter++

		end := i + aesBlockSize
		if end > len(src) {
			end = len(src)
		}
		for j := i; j < end; j++ {
			dst[j] = src[j] ^ keystream[j-i]
		}
	}
}
