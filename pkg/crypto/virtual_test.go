package crypto

import (
	"testing"

	"github.com/google/uuid"
)

func TestVirtualAddress(t *testing.T) {
	label := uuid.MustParse("f4a002c7-fb1e-4ca0-a469-a021de0db875")

	addr := VirtualAddress(label)
	if !IsVirtualAddress(addr) {
		t.Errorf("address %#04x outside virtual range", addr)
	}
	if again := VirtualAddress(label); again != addr {
		t.Errorf("derivation not deterministic: %#04x != %#04x", again, addr)
	}

	other := VirtualAddress(uuid.MustParse("25bdf2eb-03cc-4383-a65a-dd3e8007fb55"))
	if other == addr {
		t.Errorf("distinct labels hashed to the same address %#04x", addr)
	}
}

func TestIsVirtualAddress(t *testing.T) {
	tests := []struct {
		addr uint16
		want bool
	}{
		{0x0001, false}, // unicast
		{0x7fff, false},
		{0x8000, true},
		{0xbfff, true},
		{0xc000, false}, // group
		{0xffff, false}, // all-nodes broadcast
	}
	for _, tc := range tests {
		if got := IsVirtualAddress(tc.addr); got != tc.want {
			t.Errorf("IsVirtualAddress(%#04x) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}
