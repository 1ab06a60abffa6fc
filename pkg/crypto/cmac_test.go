package crypto

import (
	"bytes"
	"errors"
	"testing"
)

// AES-CMAC test vectors from RFC 4493 Section 4.
func TestAESCMAC(t *testing.T) {
	key := "2b7e151628aed2a6abf7158809cf4f3c"

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "Empty message",
			message: "",
			want:    "bb1d6929e95937287fa37d129b756746",
		},
		{
			name:    "16-byte message",
			message: "6bc1bee22e409f96e93d7e117393172a",
			want:    "070a16b46b4d4144f79bdd9dd04a287c",
		},
		{
			name:    "40-byte message",
			message: "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411",
			want:    "dfa66747de9ae63030ca32611497c827",
		},
		{
			name:    "64-byte message",
			message: "6bc1bee22e409f96e93d7e117393172aae2d8a571e03ac9c9eb76fac45af8e5130c81c46a35ce411e5fbc1191a0a52eff69f2445df4f9b17ad2b417be66c3710",
			want:    "51f0bebf7e3b9d92fc49741779363cfe",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AESCMAC(mustHex(t, key), mustHex(t, tc.message))
			if err != nil {
				t.Fatalf("AESCMAC failed: %v", err)
			}
			if !bytes.Equal(got, mustHex(t, tc.want)) {
				t.Errorf("mac mismatch:\n  got:  %x\n  want: %s", got, tc.want)
			}
		})
	}
}

func TestAESCMACInvalidKey(t *testing.T) {
	if _, err := AESCMAC(make([]byte, 15), nil); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("err = %v, want ErrInvalidKeySize", err)
	}
}

// Derivation function vectors from Mesh Profile sample data Section 8.1.
func TestS1(t *testing.T) {
	got := S1([]byte("test"))
	if !bytes.Equal(got, mustHex(t, "b73cefbd641ef2ea598c2b6efb62f79c")) {
		t.Errorf("s1(\"test\") = %x, want b73cefbd641ef2ea598c2b6efb62f79c", got)
	}
}

func TestK1(t *testing.T) {
	got, err := K1(
		mustHex(t, "3216d1509884b533248541792b877f98"),
		mustHex(t, "2ba14ffa0df84a2831938d57d276cab4"),
		mustHex(t, "5a09d60797eeb4478aada59db3352a0d"),
	)
	if err != nil {
		t.Fatalf("K1 failed: %v", err)
	}
	if !bytes.Equal(got, mustHex(t, "f6ed15a8934afbe7d83e8dcb57fcf5d7")) {
		t.Errorf("k1 = %x, want f6ed15a8934afbe7d83e8dcb57fcf5d7", got)
	}
}

func TestK2Master(t *testing.T) {
	nid, encryptionKey, privacyKey, err := K2(
		mustHex(t, "f7a2a44f8e8a8029064f173ddc1e2b00"),
		[]byte{0x00},
	)
	if err != nil {
		t.Fatalf("K2 failed: %v", err)
	}
	if nid != 0x7f {
		t.Errorf("nid = %#02x, want 0x7f", nid)
	}
	if !bytes.Equal(encryptionKey, mustHex(t, "9f589181a0f50de73c8070c7a6d27f46")) {
		t.Errorf("encryption key mismatch:\n  got:  %x", encryptionKey)
	}
	if !bytes.Equal(privacyKey, mustHex(t, "4c715bd4a64b938f99b453351653124f")) {
		t.Errorf("privacy key mismatch:\n  got:  %x", privacyKey)
	}
}

func TestK3(t *testing.T) {
	got, err := K3(mustHex(t, "f7a2a44f8e8a8029064f173ddc1e2b00"))
	if err != nil {
		t.Fatalf("K3 failed: %v", err)
	}
	if !bytes.Equal(got, mustHex(t, "ff046958233db014")) {
		t.Errorf("k3 = %x, want ff046958233db014", got)
	}
}

func TestK4(t *testing.T) {
	got, err := K4(mustHex(t, "3216d1509884b533248541792b877f98"))
	if err != nil {
		t.Fatalf("K4 failed: %v", err)
	}
	if got != 0x38 {
		t.Errorf("k4 = %#02x, want 0x38", got)
	}
}
