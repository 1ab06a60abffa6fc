package network

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/backkem/btmesh/pkg/crypto"
	"github.com/backkem/btmesh/pkg/transport"
)

const testIVIndex = 0x12345678

func testNetKey(t *testing.T) crypto.NetworkKey {
	t.Helper()
	key, err := crypto.NewNetworkKey(mustHex(t, "7dd7364cd842ad18c17c2b820c84c3d6"))
	if err != nil {
		t.Fatalf("NewNetworkKey failed: %v", err)
	}
	return key
}

func testAppKey(t *testing.T) crypto.ApplicationKey {
	t.Helper()
	key, err := crypto.NewApplicationKey(mustHex(t, "63964771734fbd76e3b40519d1d94a48"))
	if err != nil {
		t.Fatalf("NewApplicationKey failed: %v", err)
	}
	return key
}

func healthCurrentStatus(t *testing.T) transport.AccessMessage {
	return transport.AccessMessage{
		Src: 0x1201, Dst: 0xffff, TTL: 0x03,
		Payload: mustHex(t, "0400000000"),
	}
}

// Network PDU vectors from the profile sample data.
func TestPackVectors(t *testing.T) {
	tests := []struct {
		name    string
		message transport.Message
		seq     uint32
		want    string
	}{
		{
			name:    "Access health status",
			message: healthCurrentStatus(t),
			seq:     0x000007,
			want:    "6848cba437860e5673728a627fb938535508e21a6baf57",
		},
		{
			name: "Segment acknowledgement",
			message: transport.NewSegmentAckMessage(
				0x2345, 0x0003, 0x0b, 0x09ab, true, 1,
			),
			seq:  0x014835,
			want: "68e476b5579c980d0d730f94d7f3509df987bb417eb7c05f",
		},
		{
			name: "Control friend offer",
			message: transport.ControlMessage{
				Src: 0x2345, Dst: 0x1201, TTL: 0x00,
				Opcode:  0x04,
				Payload: mustHex(t, "320308ba072f"),
			},
			seq:  0x014820,
			want: "68d4c826296d7979d7dbc0c9b4d43eebec129d20a620d01e",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pdus, err := Message{tc.message}.Pack(testAppKey(t), testNetKey(t), tc.seq, testIVIndex)
			if err != nil {
				t.Fatalf("Pack failed: %v", err)
			}
			if len(pdus) != 1 {
				t.Fatalf("pdu count = %d, want 1", len(pdus))
			}
			if pdus[0].Seq != tc.seq {
				t.Errorf("seq used = %#06x, want %#06x", pdus[0].Seq, tc.seq)
			}
			if !bytes.Equal(pdus[0].Data, mustHex(t, tc.want)) {
				t.Errorf("pdu mismatch:\n  got:  %x\n  want: %s", pdus[0].Data, tc.want)
			}
		})
	}
}

// Retransmission consumes fresh network sequence numbers while keeping
// the upper transport ciphertext tied to the original sequence.
func TestPackRetry(t *testing.T) {
	message := Message{healthCurrentStatus(t)}

	pdus, err := message.PackRetry(testAppKey(t), testNetKey(t), 0x000017, 0x000007, testIVIndex)
	if err != nil {
		t.Fatalf("PackRetry failed: %v", err)
	}
	if len(pdus) != 1 {
		t.Fatalf("pdu count = %d, want 1", len(pdus))
	}
	if pdus[0].Seq != 0x000017 {
		t.Errorf("seq used = %#06x, want 0x000017", pdus[0].Seq)
	}
	want := "6860f30170e2192e84fb4385254e9e71657aa1bcf2ca90"
	if !bytes.Equal(pdus[0].Data, mustHex(t, want)) {
		t.Errorf("pdu mismatch:\n  got:  %x\n  want: %s", pdus[0].Data, want)
	}
}

// Packing is deterministic; a retry under a new transport sequence keeps
// SeqZero but shifts every per-segment sequence number.
func TestPackSegmentedRetryKeepsSeqZero(t *testing.T) {
	message := Message{transport.AccessMessage{
		Src: 0x0003, Dst: 0x1201, TTL: 0x04,
		Payload: mustHex(t, "0056341263964771734fbd76e3b40519d1d94a48"),
	}}
	devKey, err := crypto.NewDeviceKey(mustHex(t, "9d6dd0e96eb25dc19a40ed9914f8f03f"))
	if err != nil {
		t.Fatalf("NewDeviceKey failed: %v", err)
	}
	netKey := testNetKey(t)

	original, err := message.Pack(devKey, netKey, 0x3129ab, testIVIndex)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(original) != 2 {
		t.Fatalf("pdu count = %d, want 2", len(original))
	}

	again, err := message.Pack(devKey, netKey, 0x3129ab, testIVIndex)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	for i := range original {
		if !bytes.Equal(original[i].Data, again[i].Data) {
			t.Errorf("pdu %d not deterministic", i)
		}
	}

	retry, err := message.PackRetry(devKey, netKey, 0x3129ad, 0x3129ab, testIVIndex)
	if err != nil {
		t.Fatalf("PackRetry failed: %v", err)
	}
	for i, pdu := range retry {
		if pdu.Seq != 0x3129ad+uint32(i) {
			t.Errorf("pdu %d seq = %#06x, want %#06x", i, pdu.Seq, 0x3129ad+uint32(i))
		}
		unpacked, err := Unpack(netKey, testIVIndex, pdu.Data)
		if err != nil {
			t.Fatalf("Unpack(pdu %d) failed: %v", i, err)
		}
		parsed, err := transport.ParsePDU(unpacked.CTL, unpacked.TransportPDU)
		if err != nil {
			t.Fatalf("ParsePDU(pdu %d) failed: %v", i, err)
		}
		segment, ok := parsed.(transport.SegmentedAccess)
		if !ok {
			t.Fatalf("pdu %d parsed as %T", i, parsed)
		}
		// SeqZero still derives from the original transport sequence.
		if segment.SeqZero != 0x09ab {
			t.Errorf("pdu %d SeqZero = %#04x, want 0x09ab", i, segment.SeqZero)
		}
	}
}

// Full receive path: unpack both segments, reassemble, decrypt.
func TestUnpackReassembleDecrypt(t *testing.T) {
	payload := mustHex(t, "0056341263964771734fbd76e3b40519d1d94a48")
	message := Message{transport.AccessMessage{
		Src: 0x0003, Dst: 0x1201, TTL: 0x04,
		Payload: payload,
	}}
	devKey, err := crypto.NewDeviceKey(mustHex(t, "9d6dd0e96eb25dc19a40ed9914f8f03f"))
	if err != nil {
		t.Fatalf("NewDeviceKey failed: %v", err)
	}
	netKey := testNetKey(t)

	pdus, err := message.Pack(devKey, netKey, 0x3129ab, testIVIndex)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	assembler := transport.NewAssembler(transport.AssemblerConfig{})
	var assembled *transport.Assembled
	for i, pdu := range pdus {
		unpacked, err := Unpack(netKey, testIVIndex, pdu.Data)
		if err != nil {
			t.Fatalf("Unpack(pdu %d) failed: %v", i, err)
		}
		if unpacked.CTL || unpacked.TTL != 0x04 || unpacked.Src != 0x0003 || unpacked.Dst != 0x1201 {
			t.Fatalf("pdu %d header = %+v", i, unpacked)
		}
		if unpacked.Seq != 0x3129ab+uint32(i) {
			t.Fatalf("pdu %d seq = %#06x", i, unpacked.Seq)
		}

		parsed, err := transport.ParsePDU(unpacked.CTL, unpacked.TransportPDU)
		if err != nil {
			t.Fatalf("ParsePDU(pdu %d) failed: %v", i, err)
		}
		assembled, err = assembler.Add(unpacked.Src, parsed)
		if i < len(pdus)-1 {
			if !errors.Is(err, transport.ErrIncompleteAssembly) {
				t.Fatalf("pdu %d: err = %v, want ErrIncompleteAssembly", i, err)
			}
		} else if err != nil {
			t.Fatalf("final pdu: %v", err)
		}
	}

	// SeqAuth: the sequence number of the first segment.
	plain, err := transport.DecryptAccess(devKey, 0x0003, 0x1201, 0x3129ab, testIVIndex, assembled.SZMIC, nil, assembled.Data)
	if err != nil {
		t.Fatalf("DecryptAccess failed: %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Errorf("payload mismatch:\n  got:  %x\n  want: %x", plain, payload)
	}
}

func TestUnpackVector(t *testing.T) {
	unpacked, err := Unpack(testNetKey(t), testIVIndex, mustHex(t, "6848cba437860e5673728a627fb938535508e21a6baf57"))
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if unpacked.CTL || unpacked.TTL != 0x03 {
		t.Errorf("CTL/TTL = %v/%d", unpacked.CTL, unpacked.TTL)
	}
	if unpacked.Seq != 0x000007 || unpacked.Src != 0x1201 || unpacked.Dst != 0xffff {
		t.Errorf("seq/src/dst = %#06x/%#04x/%#04x", unpacked.Seq, unpacked.Src, unpacked.Dst)
	}
	if !bytes.Equal(unpacked.TransportPDU, mustHex(t, "665a8bde6d9106ea078a")) {
		t.Errorf("transport PDU mismatch:\n  got:  %x", unpacked.TransportPDU)
	}
}

func TestUnpackErrors(t *testing.T) {
	netKey := testNetKey(t)
	raw := mustHex(t, "6848cba437860e5673728a627fb938535508e21a6baf57")

	t.Run("too short", func(t *testing.T) {
		if _, err := Unpack(netKey, testIVIndex, raw[:10]); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("err = %v, want ErrMalformedFrame", err)
		}
	})

	t.Run("foreign NID", func(t *testing.T) {
		foreign := append([]byte(nil), raw...)
		foreign[0] ^= 0x01
		if _, err := Unpack(netKey, testIVIndex, foreign); !errors.Is(err, ErrUnknownNID) {
			t.Errorf("err = %v, want ErrUnknownNID", err)
		}
	})

	t.Run("tampered NetMIC", func(t *testing.T) {
		tampered := append([]byte(nil), raw...)
		tampered[len(tampered)-1] ^= 0x01
		if _, err := Unpack(netKey, testIVIndex, tampered); !errors.Is(err, crypto.ErrAuthentication) {
			t.Errorf("err = %v, want crypto.ErrAuthentication", err)
		}
	})

	t.Run("wrong network key", func(t *testing.T) {
		other, err := crypto.NewNetworkKey(mustHex(t, "f7a2a44f8e8a8029064f173ddc1e2b00"))
		if err != nil {
			t.Fatalf("NewNetworkKey failed: %v", err)
		}
		// Different key, different NID.
		if _, err := Unpack(other, testIVIndex, raw); !errors.Is(err, ErrUnknownNID) {
			t.Errorf("err = %v, want ErrUnknownNID", err)
		}
	})
}

// A sender one IV index behind is still accepted via the IVI bit.
func TestUnpackPreviousIVIndex(t *testing.T) {
	netKey := testNetKey(t)
	message := Message{healthCurrentStatus(t)}

	pdus, err := message.Pack(testAppKey(t), netKey, 0x000007, testIVIndex)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	unpacked, err := Unpack(netKey, testIVIndex+1, pdus[0].Data)
	if err != nil {
		t.Fatalf("Unpack with advanced IV index failed: %v", err)
	}
	if unpacked.Src != 0x1201 {
		t.Errorf("src = %#04x, want 0x1201", unpacked.Src)
	}

	// Two epochs ahead the IVI bit matches again but the nonce does
	// not; authentication must fail.
	if _, err := Unpack(netKey, testIVIndex+2, pdus[0].Data); !errors.Is(err, crypto.ErrAuthentication) {
		t.Errorf("err = %v, want crypto.ErrAuthentication", err)
	}
}

func TestPackSequenceOverflow(t *testing.T) {
	message := Message{healthCurrentStatus(t)}
	if _, err := message.Pack(testAppKey(t), testNetKey(t), maxSeq+1, testIVIndex); !errors.Is(err, ErrSequenceOverflow) {
		t.Errorf("err = %v, want ErrSequenceOverflow", err)
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}
