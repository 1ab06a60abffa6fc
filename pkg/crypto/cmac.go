// AES-CMAC and the mesh key derivation functions built on top of it.
// This implements the security toolbox from Mesh Profile Section 3.8.2:
// s1, k1, k2, k3 and k4. All functions are deterministic and pure.

package crypto

import (
	"crypto/aes"

	"github.com/aead/cmac"
)

// Salt inputs for the derivation functions (Mesh Profile 3.8.2).
var (
	saltSMK2 = []byte("smk2")
	saltSMK3 = []byte("smk3")
	saltSMK4 = []byte("smk4")
	saltNKBK = []byte("nkbk")
	saltNKIK = []byte("nkik")
	saltVTAD = []byte("vtad")
)

// AESCMAC computes the AES-CMAC (RFC 4493) of message under a 128-bit key.
// This is the mac primitive every derivation and beacon authentication
// builds on.
func AESCMAC(key, message []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cmac.Sum(message, block, aes.BlockSize)
}

// S1 implements the SALT generation function s1 (Mesh Profile 3.8.2.4):
// s1(M) = AES-CMAC with a zero key over M.
func S1(message []byte) []byte {
	out, _ := AESCMAC(make([]byte, KeySize), message)
	return out
}

// K1 implements the k1 derivation function (Mesh Profile 3.8.2.5):
// k1(N, SALT, P) = AES-CMAC_T(P) where T = AES-CMAC_SALT(N).
// Used to derive the identity and beacon keys from a network key.
func K1(n, salt, p []byte) ([]byte, error) {
	t, err := AESCMAC(salt, n)
	if err != nil {
		return nil, err
	}
	return AESCMAC(t, p)
}

// K2 implements the network key material derivation function k2
// (Mesh Profile 3.8.2.6). For master security material P is 0x00.
// Returns the 7-bit NID, the encryption key and the privacy key.
func K2(n, p []byte) (nid byte, encryptionKey, privacyKey []byte, err error) {
	t, err := AESCMAC(S1(saltSMK2), n)
	if err != nil {
		return 0, nil, nil, err
	}

	t1, err := AESCMAC(t, append(append([]byte{}, p...), 0x01))
	if err != nil {
		return 0, nil, nil, err
	}
	t2, err := AESCMAC(t, append(append(append([]byte{}, t1...), p...), 0x02))
	if err != nil {
		return 0, nil, nil, err
	}
	t3, err := AESCMAC(t, append(append(append([]byte{}, t2...), p...), 0x03))
	if err != nil {
		return 0, nil, nil, err
	}

	// k2 output is (T1 || T2 || T3) mod 2^263: the low 7 bits of T1's last
	// octet are the NID, T2 is the encryption key, T3 the privacy key.
	return t1[15] & 0x7f, t2, t3, nil
}

// K3 implements the k3 derivation function (Mesh Profile 3.8.2.7),
// producing the public 64-bit Network ID of a network key.
func K3(n []byte) ([]byte, error) {
	t, err := AESCMAC(S1(saltSMK3), n)
	if err != nil {
		return nil, err
	}
	out, err := AESCMAC(t, []byte("id64\x01"))
	if err != nil {
		return nil, err
	}
	// k3 output is the CMAC mod 2^64.
	return out[8:], nil
}

// K4 implements the k4 derivation function (Mesh Profile 3.8.2.8),
// producing the 6-bit application key identifier (AID).
func K4(n []byte) (byte, error) {
	t, err := AESCMAC(S1(saltSMK4), n)
	if err != nil {
		return 0, err
	}
	out, err := AESCMAC(t, []byte("id6\x01"))
	if err != nil {
		return 0, err
	}
	// k4 output is the CMAC mod 2^6.
	return out[15] & 0x3f, nil
}
