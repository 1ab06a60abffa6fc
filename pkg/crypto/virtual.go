// Virtual address hashing (Mesh Profile 3.4.2.3). A virtual address is a
// 16-bit address in the 0x8000-0xBFFF range derived from a 128-bit label
// UUID; the label itself travels as additional authenticated data on
// access payloads addressed to it.

package crypto

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Virtual address range bounds.
const (
	VirtualAddressMin = 0x8000
	VirtualAddressMax = 0xbfff
)

// VirtualAddress derives the 16-bit virtual address of a label UUID:
// 0b10 || (AES-CMAC_s1("vtad")(label) mod 2^14).
func VirtualAddress(label uuid.UUID) uint16 {
	hash, _ := AESCMAC(S1(saltVTAD), label[:])
	return VirtualAddressMin | binary.BigEndian.Uint16(hash[14:16])&0x3fff
}

// IsVirtualAddress reports whether addr lies in the virtual address range.
func IsVirtualAddress(addr uint16) bool {
	return addr >= VirtualAddressMin && addr <= VirtualAddressMax
}
